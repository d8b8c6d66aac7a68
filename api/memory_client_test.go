package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"recurringepics/models"
	"recurringepics/services"
)

func TestParseJQL(t *testing.T) {
	clauses, err := parseJQL(`project = "OPS" AND issuetype = Epic AND summary ~ "\"CC Gantt - Infra Mar'26\"" AND status != Done`)
	require.NoError(t, err)
	require.Equal(t, []jqlClause{
		{field: "project", op: "=", value: "OPS"},
		{field: "issuetype", op: "=", value: "Epic"},
		{field: "summary", op: "~", value: `"CC Gantt - Infra Mar'26"`},
		{field: "status", op: "!=", value: "Done"},
	}, clauses)

	for _, bad := range []string{"", "ORDER BY created", `project = OPS OR status = Done`} {
		_, err := parseJQL(bad)
		require.Error(t, err, bad)
	}
}

func TestMemoryClientSearch(t *testing.T) {
	m := NewMemoryClient("OPS")
	epic := m.AddIssue("Epic", "CC Gantt - Infra Mar'26", "To Do")
	m.AddIssue("Epic", "CC Gantt - Infra Feb'26", "Done")
	m.AddIssue("Story", "CC Gantt - Infra Mar'26 story", "To Do")

	got := m.SearchIssues(`project = "OPS" AND issuetype = Epic AND summary ~ "cc gantt" AND status != Done`, 10)
	require.Equal(t, []models.IssueRef{epic}, got)

	require.Len(t, m.SearchIssues(`project = "OPS" AND summary ~ "Infra"`, 2), 2)
	require.Empty(t, m.SearchIssues(`project = "OTHER"`, 10))

	// 解析できないJQLは空の結果になる
	require.Empty(t, m.SearchIssues(`project in (OPS)`, 10))

	m.SearchErr = errors.New("timeout")
	require.Empty(t, m.SearchIssues(`project = "OPS"`, 10))
	require.Equal(t, 5, m.CallCount("search"))
}

func TestMemoryClientCreateAndTransition(t *testing.T) {
	m := NewMemoryClient("OPS")
	ref, err := m.CreateIssue("OPS", map[string]interface{}{
		"summary":   "CC Gantt - March 2026",
		"issuetype": map[string]string{"name": "Epic"},
	})
	require.NoError(t, err)
	require.Equal(t, "OPS-1", ref.Key)

	issue, ok := m.Issue(ref.Key)
	require.True(t, ok)
	require.Equal(t, "Epic", issue.IssueType)
	require.Equal(t, "To Do", issue.Status)

	transitions, err := m.ListTransitions(ref.Key)
	require.NoError(t, err)
	require.Equal(t, DefaultTransitions, transitions)

	require.NoError(t, m.ApplyTransition(ref.Key, "31"))
	issue, _ = m.Issue(ref.Key)
	require.Equal(t, "Done", issue.Status)

	err = m.ApplyTransition(ref.Key, "99")
	require.True(t, services.IsTrackerError(err))

	_, err = m.ListTransitions("OPS-404")
	require.True(t, services.IsTrackerError(err))

	m.CreateErrors["dup"] = errors.New("rejected")
	_, err = m.CreateIssue("OPS", map[string]interface{}{"summary": "dup"})
	require.True(t, services.IsTrackerError(err))
	_, err = m.CreateIssue("OPS", map[string]interface{}{})
	require.True(t, services.IsTrackerError(err))

	require.Len(t, m.Created(), 1)
	require.Equal(t, 3, m.CallCount("create"))
}

func TestMemoryClientProjectAndAuth(t *testing.T) {
	m := NewMemoryClient("OPS")
	require.True(t, m.TestAuth())

	project, err := m.GetProject("OPS")
	require.NoError(t, err)
	require.Equal(t, "OPS", project.Key)

	_, err = m.GetProject("NOPE")
	require.Error(t, err)

	fields, err := m.ListFields()
	require.NoError(t, err)
	require.NotEmpty(t, fields)
}

func TestMemoryClientPhraseWithEscapedQuotes(t *testing.T) {
	m := NewMemoryClient("OPS")
	epic := m.AddIssue("Epic", `CC Gantt - "Ops" March`, "To Do")

	// summary ~ "\"...\"" の二重クォートされたフレーズ
	got := m.SearchIssues(`project = "OPS" AND summary ~ "\"CC Gantt - \\\"Ops\\\" March\""`, 10)
	require.Equal(t, []models.IssueRef{epic}, got)
}
