package api

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"recurringepics/models"
	"recurringepics/services"
	"recurringepics/utils"
)

var _ services.Gateway = (*MemoryClient)(nil)

// DefaultTransitions は MemoryClient で新規イシューに設定される遷移です
var DefaultTransitions = []models.Transition{
	{ID: "11", Name: "To Do"},
	{ID: "21", Name: "In Progress"},
	{ID: "31", Name: "Done"},
}

// MemoryIssue は MemoryClient が保持するイシューです
type MemoryIssue struct {
	Key         string
	Project     string
	IssueType   string
	Summary     string
	Status      string
	Fields      map[string]interface{}
	Transitions []models.Transition
}

// Call は MemoryClient への呼び出し記録です
type Call struct {
	Op  string
	Key string
	JQL string
}

// MemoryClient はネットワークを使わない Gateway 実装です。
// このツールが発行するJQL (project =, issuetype =, summary ~, status =/!=) を評価できます
type MemoryClient struct {
	ProjectKey  string
	ProjectName string
	AuthOK      bool
	Fields      []models.FieldInfo

	// 失敗の注入
	CreateErrors     map[string]error // サマリー → エラー
	TransitionErrors map[string]error // イシューキー → エラー
	SearchErr        error
	FieldsErr        error

	Calls []Call

	issues []*MemoryIssue
	nextID int
}

// NewMemoryClient は空のプロジェクトを持つ MemoryClient を作成します
func NewMemoryClient(projectKey string) *MemoryClient {
	return &MemoryClient{
		ProjectKey:       projectKey,
		ProjectName:      projectKey,
		AuthOK:           true,
		Fields:           []models.FieldInfo{{ID: "duedate", Name: "Due date"}, {ID: "customfield_10015", Name: "Start date"}},
		CreateErrors:     map[string]error{},
		TransitionErrors: map[string]error{},
	}
}

// AddIssue は既存イシューを登録します (テストの前提データ用)
func (m *MemoryClient) AddIssue(issueType, summary, status string) models.IssueRef {
	issue := m.insert(m.ProjectKey, issueType, summary, map[string]interface{}{})
	issue.Status = status
	return models.IssueRef{Key: issue.Key, Summary: issue.Summary, Status: issue.Status}
}

// SetTransitions はイシューで利用可能な遷移を差し替えます
func (m *MemoryClient) SetTransitions(key string, transitions ...models.Transition) {
	if issue := m.find(key); issue != nil {
		issue.Transitions = transitions
	}
}

// Issue はキーでイシューを取得します
func (m *MemoryClient) Issue(key string) (MemoryIssue, bool) {
	issue := m.find(key)
	if issue == nil {
		return MemoryIssue{}, false
	}
	return *issue, true
}

// Created は CreateIssue で作成されたイシューを作成順に返します
func (m *MemoryClient) Created() []MemoryIssue {
	var created []MemoryIssue
	for _, c := range m.Calls {
		if c.Op != "create" || c.Key == "" {
			continue
		}
		if issue := m.find(c.Key); issue != nil {
			created = append(created, *issue)
		}
	}
	return created
}

// CallCount は指定した操作の呼び出し回数を返します
func (m *MemoryClient) CallCount(op string) int {
	n := 0
	for _, c := range m.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// CreateIssue はイシューを作成します
func (m *MemoryClient) CreateIssue(projectKey string, fields map[string]interface{}) (models.IssueRef, error) {
	summary, _ := fields["summary"].(string)
	if err, ok := m.CreateErrors[summary]; ok {
		m.Calls = append(m.Calls, Call{Op: "create"})
		return models.IssueRef{}, &services.TrackerError{Op: "create", Err: err}
	}
	if summary == "" {
		m.Calls = append(m.Calls, Call{Op: "create"})
		return models.IssueRef{}, &services.TrackerError{Op: "create", Err: errors.New("summary: フィールドは必須です")}
	}

	issueType := "Task"
	if t, ok := fields["issuetype"].(map[string]string); ok {
		issueType = t["name"]
	}
	issue := m.insert(projectKey, issueType, summary, fields)
	m.Calls = append(m.Calls, Call{Op: "create", Key: issue.Key})
	return models.IssueRef{Key: issue.Key, Summary: issue.Summary, Status: issue.Status}, nil
}

// SearchIssues はJQLを評価して一致するイシューを返します。評価できない場合は空を返します
func (m *MemoryClient) SearchIssues(jql string, maxResults int) []models.IssueRef {
	m.Calls = append(m.Calls, Call{Op: "search", JQL: jql})
	if m.SearchErr != nil {
		utils.LogWarn("JIRA検索エラー (%s): %v", jql, m.SearchErr)
		return nil
	}

	clauses, err := parseJQL(jql)
	if err != nil {
		utils.LogWarn("JIRA検索エラー (%s): %v", jql, err)
		return nil
	}

	var refs []models.IssueRef
	for _, issue := range m.issues {
		if maxResults > 0 && len(refs) >= maxResults {
			break
		}
		if matchesAll(issue, clauses) {
			refs = append(refs, models.IssueRef{Key: issue.Key, Summary: issue.Summary, Status: issue.Status})
		}
	}
	return refs
}

// ListTransitions はイシューの遷移一覧を返します
func (m *MemoryClient) ListTransitions(issueKey string) ([]models.Transition, error) {
	m.Calls = append(m.Calls, Call{Op: "transitions", Key: issueKey})
	issue := m.find(issueKey)
	if issue == nil {
		return nil, &services.TrackerError{Op: "transitions", Key: issueKey, Err: errors.New("イシューが存在しません")}
	}
	return issue.Transitions, nil
}

// ApplyTransition は遷移を実行し、遷移名をステータスにします
func (m *MemoryClient) ApplyTransition(issueKey, transitionID string) error {
	m.Calls = append(m.Calls, Call{Op: "transition", Key: issueKey})
	if err, ok := m.TransitionErrors[issueKey]; ok {
		return &services.TrackerError{Op: "transition", Key: issueKey, Err: err}
	}
	issue := m.find(issueKey)
	if issue == nil {
		return &services.TrackerError{Op: "transition", Key: issueKey, Err: errors.New("イシューが存在しません")}
	}
	for _, t := range issue.Transitions {
		if t.ID == transitionID {
			issue.Status = t.Name
			return nil
		}
	}
	return &services.TrackerError{Op: "transition", Key: issueKey, Err: errors.Newf("遷移 %s は利用できません", transitionID)}
}

// GetProject はプロジェクト情報を返します
func (m *MemoryClient) GetProject(projectKey string) (models.ProjectInfo, error) {
	m.Calls = append(m.Calls, Call{Op: "project", Key: projectKey})
	if projectKey != m.ProjectKey {
		return models.ProjectInfo{}, &services.TrackerError{Op: "project", Key: projectKey, Err: errors.New("プロジェクトが存在しません")}
	}
	return models.ProjectInfo{Key: m.ProjectKey, Name: m.ProjectName}, nil
}

// ListFields はフィールド一覧を返します
func (m *MemoryClient) ListFields() ([]models.FieldInfo, error) {
	m.Calls = append(m.Calls, Call{Op: "fields"})
	if m.FieldsErr != nil {
		return nil, &services.TrackerError{Op: "fields", Err: m.FieldsErr}
	}
	return m.Fields, nil
}

// TestAuth は AuthOK を返します
func (m *MemoryClient) TestAuth() bool {
	m.Calls = append(m.Calls, Call{Op: "auth"})
	return m.AuthOK
}

func (m *MemoryClient) insert(project, issueType, summary string, fields map[string]interface{}) *MemoryIssue {
	m.nextID++
	transitions := make([]models.Transition, len(DefaultTransitions))
	copy(transitions, DefaultTransitions)
	issue := &MemoryIssue{
		Key:         fmt.Sprintf("%s-%d", project, m.nextID),
		Project:     project,
		IssueType:   issueType,
		Summary:     summary,
		Status:      "To Do",
		Fields:      fields,
		Transitions: transitions,
	}
	m.issues = append(m.issues, issue)
	return issue
}

func (m *MemoryClient) find(key string) *MemoryIssue {
	for _, issue := range m.issues {
		if issue.Key == key {
			return issue
		}
	}
	return nil
}

// jqlClause は field op value の1条件です
type jqlClause struct {
	field string
	op    string
	value string
}

var (
	jqlClauseRe = regexp.MustCompile(`(\w+)\s*(!=|=|~)\s*("(?:[^"\\]|\\.)*"|[^\s"]+)`)
	jqlAndRe    = regexp.MustCompile(`^\s*(AND\s*)?$`)
)

// parseJQL は AND で連結された条件を解析します
func parseJQL(jql string) ([]jqlClause, error) {
	matches := jqlClauseRe.FindAllStringSubmatchIndex(jql, -1)
	if len(matches) == 0 {
		return nil, errors.Newf("解析できないJQLです: %s", jql)
	}

	var clauses []jqlClause
	prev := 0
	for _, loc := range matches {
		if !jqlAndRe.MatchString(jql[prev:loc[0]]) {
			return nil, errors.Newf("未対応のJQLです: %s", jql)
		}
		prev = loc[1]
		clauses = append(clauses, jqlClause{
			field: strings.ToLower(jql[loc[2]:loc[3]]),
			op:    jql[loc[4]:loc[5]],
			value: unquoteJQL(jql[loc[6]:loc[7]]),
		})
	}
	if strings.TrimSpace(jql[prev:]) != "" {
		return nil, errors.Newf("未対応のJQLです: %s", jql)
	}
	return clauses, nil
}

func unquoteJQL(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return v
	}
	var b strings.Builder
	inner := v[1 : len(v)-1]
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}
		b.WriteByte(inner[i])
	}
	return b.String()
}

func matchesAll(issue *MemoryIssue, clauses []jqlClause) bool {
	for _, c := range clauses {
		if !matches(issue, c) {
			return false
		}
	}
	return true
}

func matches(issue *MemoryIssue, c jqlClause) bool {
	var actual string
	switch c.field {
	case "project":
		actual = issue.Project
	case "issuetype":
		actual = issue.IssueType
	case "summary":
		actual = issue.Summary
	case "status":
		actual = issue.Status
	default:
		return false
	}

	switch c.op {
	case "=":
		return strings.EqualFold(actual, c.value)
	case "!=":
		return !strings.EqualFold(actual, c.value)
	case "~":
		// "..." で囲まれたフレーズ検索も部分一致として扱う
		phrase := unquoteJQL(c.value)
		return strings.Contains(strings.ToLower(actual), strings.ToLower(phrase))
	}
	return false
}
