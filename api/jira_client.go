package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/andygrunwald/go-jira"
	"github.com/cockroachdb/errors"

	"recurringepics/config"
	"recurringepics/models"
	"recurringepics/services"
	"recurringepics/utils"
)

var _ services.Gateway = (*JiraClient)(nil)

// JiraClient はJIRA APIとのやり取りを処理します
type JiraClient struct {
	config *config.Config
	client *jira.Client
}

// NewJiraClient は新しいJIRAクライアントを作成します。
// APIトークンは https://id.atlassian.com/manage-profile/security/api-tokens で発行します
func NewJiraClient(cfg *config.Config) (*JiraClient, error) {
	return NewJiraClientWithHTTP(cfg, nil)
}

// NewJiraClientWithHTTP は任意の http.Client の上にJIRAクライアントを作成します (nil ならBasic認証)
func NewJiraClientWithHTTP(cfg *config.Config, httpClient *http.Client) (*JiraClient, error) {
	if httpClient == nil {
		tp := jira.BasicAuthTransport{
			Username: cfg.JiraEmail,
			Password: cfg.JiraAPIToken,
		}
		httpClient = tp.Client()
	}
	client, err := jira.NewClient(httpClient, cfg.JiraServer)
	if err != nil {
		return nil, errors.Wrap(err, "JIRAクライアント作成エラー")
	}
	return &JiraClient{
		config: cfg,
		client: client,
	}, nil
}

// TestAuth はJIRA認証をチェックします
func (j *JiraClient) TestAuth() bool {
	if err := j.CheckAuth(); err != nil {
		utils.LogError("JIRA認証エラー: %v", err)
		return false
	}
	return true
}

// CheckAuth は /myself を取得して認証情報を確認します
func (j *JiraClient) CheckAuth() error {
	req, err := j.client.NewRequest(http.MethodGet, "rest/api/2/myself", nil)
	if err != nil {
		return errors.Wrap(err, "リクエスト作成エラー")
	}
	var self jira.User
	resp, err := j.client.Do(req, &self)
	if err != nil {
		return jira.NewJiraError(resp, err)
	}
	return nil
}

// CreateIssue はJIRAイシューを作成します。fields にはプロジェクト以外のフィールドを渡します
func (j *JiraClient) CreateIssue(projectKey string, fields map[string]interface{}) (models.IssueRef, error) {
	payloadFields := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		payloadFields[k] = v
	}
	payloadFields["project"] = map[string]string{"key": projectKey}

	payload := map[string]interface{}{"fields": payloadFields}
	req, err := j.client.NewRequest(http.MethodPost, "rest/api/2/issue", payload)
	if err != nil {
		return models.IssueRef{}, &services.TrackerError{Op: "create", Err: err}
	}

	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	resp, err := j.client.Do(req, &created)
	if err != nil {
		return models.IssueRef{}, &services.TrackerError{Op: "create", Err: jira.NewJiraError(resp, err)}
	}
	if created.Key == "" {
		return models.IssueRef{}, &services.TrackerError{Op: "create", Err: errors.New("イシューキーが見つかりません")}
	}

	summary, _ := fields["summary"].(string)
	return models.IssueRef{Key: created.Key, Summary: summary}, nil
}

// searchJQLPath はJira Cloudの検索APIです (rest/api/2/search は廃止済み)
const searchJQLPath = "rest/api/3/search/jql"

var errSearchJQLUnsupported = errors.New("rest/api/3/search/jql は利用できません")

// SearchIssues はJQLでイシューを検索します。エラー時はログに残して空の結果を返します。
// search/jql が無いサーバー (Server / Data Center) では rest/api/2/search を使います
func (j *JiraClient) SearchIssues(jql string, maxResults int) []models.IssueRef {
	issues, err := j.searchJQL(jql, maxResults)
	if errors.Is(err, errSearchJQLUnsupported) {
		issues, _, err = j.client.Issue.Search(jql, &jira.SearchOptions{
			MaxResults: maxResults,
			Fields:     []string{"summary", "status"},
		})
	}
	if err != nil {
		utils.LogWarn("JIRA検索エラー (%s): %v", jql, err)
		return nil
	}

	refs := make([]models.IssueRef, 0, len(issues))
	for _, issue := range issues {
		ref := models.IssueRef{Key: issue.Key}
		if issue.Fields != nil {
			ref.Summary = issue.Fields.Summary
			if issue.Fields.Status != nil {
				ref.Status = issue.Fields.Status.Name
			}
		}
		refs = append(refs, ref)
	}
	return refs
}

// searchJQL は rest/api/3/search/jql の最初のページを取得します
func (j *JiraClient) searchJQL(jql string, maxResults int) ([]jira.Issue, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("fields", "summary,status")
	if maxResults > 0 {
		q.Set("maxResults", strconv.Itoa(maxResults))
	}
	req, err := j.client.NewRequest(http.MethodGet, searchJQLPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "リクエスト作成エラー")
	}

	var result struct {
		Issues []jira.Issue `json:"issues"`
	}
	resp, err := j.client.Do(req, &result)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, errSearchJQLUnsupported
		}
		return nil, jira.NewJiraError(resp, err)
	}
	return result.Issues, nil
}

// ListTransitions はイシューの利用可能なトランジションを取得します
func (j *JiraClient) ListTransitions(issueKey string) ([]models.Transition, error) {
	transitions, _, err := j.client.Issue.GetTransitions(issueKey)
	if err != nil {
		return nil, &services.TrackerError{Op: "transitions", Key: issueKey, Err: err}
	}

	result := make([]models.Transition, 0, len(transitions))
	for _, t := range transitions {
		result = append(result, models.Transition{ID: t.ID, Name: t.Name})
	}
	return result, nil
}

// ApplyTransition はトランジションを実行してステータスを変更します
func (j *JiraClient) ApplyTransition(issueKey, transitionID string) error {
	_, err := j.client.Issue.DoTransition(issueKey, transitionID)
	if err != nil {
		return &services.TrackerError{Op: "transition", Key: issueKey, Err: err}
	}
	return nil
}

// GetProject はプロジェクト情報を取得します
func (j *JiraClient) GetProject(projectKey string) (models.ProjectInfo, error) {
	project, _, err := j.client.Project.Get(projectKey)
	if err != nil {
		return models.ProjectInfo{}, &services.TrackerError{Op: "project", Key: projectKey, Err: err}
	}
	return models.ProjectInfo{Key: project.Key, Name: project.Name}, nil
}

// ListFields はフィールドのIDと表示名の一覧を取得します
func (j *JiraClient) ListFields() ([]models.FieldInfo, error) {
	fields, _, err := j.client.Field.GetList()
	if err != nil {
		return nil, &services.TrackerError{Op: "fields", Err: err}
	}

	result := make([]models.FieldInfo, 0, len(fields))
	for _, f := range fields {
		result = append(result, models.FieldInfo{ID: f.ID, Name: f.Name})
	}
	return result, nil
}
