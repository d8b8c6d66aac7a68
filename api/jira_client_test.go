package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"recurringepics/config"
	"recurringepics/models"
	"recurringepics/services"
)

// fakeJira は go-jira が呼び出すエンドポイントだけを持つテスト用サーバーです
type fakeJira struct {
	created      map[string]interface{}
	transition   string
	searchJQL    string
	searchPath   string
	searchFields string
	legacyOnly   bool
	authStatus   int
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case path == "/rest/api/2/myself":
		if f.authStatus != 0 {
			w.WriteHeader(f.authStatus)
			_, _ = w.Write([]byte(`{"errorMessages":["unauthorized"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"accountId":"abc","displayName":"bot"}`))
	case path == "/rest/api/2/issue" && r.Method == http.MethodPost:
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		fields, _ := body["fields"].(map[string]interface{})
		if fields["summary"] == "" || fields["summary"] == nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorMessages":[],"errors":{"summary":"required"}}`))
			return
		}
		f.created = fields
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"10001","key":"OPS-7"}`))
	case path == "/rest/api/2/search" || (path == "/rest/api/3/search/jql" && !f.legacyOnly):
		f.searchPath = path
		f.searchJQL = r.URL.Query().Get("jql")
		f.searchFields = r.URL.Query().Get("fields")
		if strings.Contains(f.searchJQL, "broken") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorMessages":["bad jql"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"startAt":0,"maxResults":50,"total":1,"issues":[
			{"id":"1","key":"OPS-1","fields":{"summary":"CC Gantt - Feb'26","status":{"name":"In Progress"}}}]}`))
	case strings.HasSuffix(path, "/transitions") && r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"transitions":[{"id":"21","name":"In Progress"},{"id":"31","name":"Done"}]}`))
	case strings.HasSuffix(path, "/transitions") && r.Method == http.MethodPost:
		var body struct {
			Transition struct {
				ID string `json:"id"`
			} `json:"transition"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.transition = body.Transition.ID
		w.WriteHeader(http.StatusNoContent)
	case path == "/rest/api/2/project/OPS":
		_, _ = w.Write([]byte(`{"id":"100","key":"OPS","name":"Operations"}`))
	case path == "/rest/api/2/field":
		_, _ = w.Write([]byte(`[{"id":"duedate","name":"Due date"},{"id":"customfield_10015","name":"Start date"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorMessages":["not found"]}`))
	}
}

func newTestJiraClient(t *testing.T) (*JiraClient, *fakeJira) {
	t.Helper()
	fake := &fakeJira{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := &config.Config{JiraServer: server.URL, JiraEmail: "bot@example.com", JiraAPIToken: "token", JiraProjectKey: "OPS"}
	client, err := NewJiraClientWithHTTP(cfg, server.Client())
	require.NoError(t, err)
	return client, fake
}

func TestJiraClientCreateIssue(t *testing.T) {
	client, fake := newTestJiraClient(t)

	ref, err := client.CreateIssue("OPS", map[string]interface{}{
		"summary":   "CC Gantt - March 2026",
		"issuetype": map[string]string{"name": "Epic"},
		"duedate":   "2026-03-31",
	})
	require.NoError(t, err)
	require.Equal(t, models.IssueRef{Key: "OPS-7", Summary: "CC Gantt - March 2026"}, ref)
	require.Equal(t, map[string]interface{}{"key": "OPS"}, fake.created["project"])
	require.Equal(t, "2026-03-31", fake.created["duedate"])

	_, err = client.CreateIssue("OPS", map[string]interface{}{"summary": ""})
	require.Error(t, err)
	require.True(t, services.IsTrackerError(err))
}

func TestJiraClientSearchIssues(t *testing.T) {
	want := []models.IssueRef{{Key: "OPS-1", Summary: "CC Gantt - Feb'26", Status: "In Progress"}}
	jql := `project = "OPS" AND summary ~ "CC Gantt"`

	t.Run("cloud", func(t *testing.T) {
		client, fake := newTestJiraClient(t)
		require.Equal(t, want, client.SearchIssues(jql, 10))
		require.Equal(t, "/rest/api/3/search/jql", fake.searchPath)
		require.Equal(t, jql, fake.searchJQL)
		require.Equal(t, "summary,status", fake.searchFields)

		// 400 はフォールバックせずに空の結果になる
		require.Empty(t, client.SearchIssues("broken", 10))
		require.Equal(t, "/rest/api/3/search/jql", fake.searchPath)
	})

	t.Run("server without search/jql", func(t *testing.T) {
		client, fake := newTestJiraClient(t)
		fake.legacyOnly = true
		require.Equal(t, want, client.SearchIssues(jql, 10))
		require.Equal(t, "/rest/api/2/search", fake.searchPath)

		require.Empty(t, client.SearchIssues("broken", 10))
	})
}

func TestJiraClientTransitions(t *testing.T) {
	client, fake := newTestJiraClient(t)

	transitions, err := client.ListTransitions("OPS-1")
	require.NoError(t, err)
	require.Equal(t, []models.Transition{{ID: "21", Name: "In Progress"}, {ID: "31", Name: "Done"}}, transitions)

	require.NoError(t, client.ApplyTransition("OPS-1", "31"))
	require.Equal(t, "31", fake.transition)
}

func TestJiraClientProjectFieldsAndAuth(t *testing.T) {
	client, fake := newTestJiraClient(t)

	project, err := client.GetProject("OPS")
	require.NoError(t, err)
	require.Equal(t, models.ProjectInfo{Key: "OPS", Name: "Operations"}, project)

	_, err = client.GetProject("NOPE")
	require.True(t, services.IsTrackerError(err))

	fields, err := client.ListFields()
	require.NoError(t, err)
	require.Contains(t, fields, models.FieldInfo{ID: "customfield_10015", Name: "Start date"})

	require.True(t, client.TestAuth())
	fake.authStatus = http.StatusUnauthorized
	require.False(t, client.TestAuth())
	require.Error(t, client.CheckAuth())
}
