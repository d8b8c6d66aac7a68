package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recurringepics/models"
)

func fixedRenderer(now time.Time) *TemplateRenderer {
	return &TemplateRenderer{now: func() time.Time { return now }}
}

func floatPtr(f float64) *float64 { return &f }

func TestCalendarContext(t *testing.T) {
	ctx := CalendarContext(2026, time.March)
	require.Equal(t, RenderContext{
		"month":       "03",
		"month_name":  "March",
		"month_short": "Mar",
		"year":        "2026",
		"year_short":  "26",
		"quarter":     "Q1",
	}, ctx)
	require.Equal(t, "Q4", CalendarContext(2025, time.December)["quarter"])
}

func TestRenderUsesNowAndOverrides(t *testing.T) {
	r := fixedRenderer(time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC))
	tmpl := &models.Template{
		Name:        "status-report",
		Summary:     "CC Gantt - {month_name} {year} ({month_short}'{year_short})",
		Description: "{quarter} owner: {owner}",
	}

	epic, err := r.Render(tmpl, RenderContext{"owner": "ops"})
	require.NoError(t, err)
	require.Equal(t, "CC Gantt - October 2026 (Oct'26)", epic.Summary)
	require.Equal(t, "Q4 owner: ops", epic.Description)
	require.Equal(t, DefaultPriority, epic.Priority)

	// 呼び出し側のキーがカレンダー由来の値より優先される
	epic, err = r.Render(tmpl, CalendarContext(2026, time.March).Merge(RenderContext{"owner": "dev", "year": "FY26"}))
	require.NoError(t, err)
	require.Equal(t, "CC Gantt - March FY26 (Mar'26)", epic.Summary)
	require.Equal(t, "Q1 owner: dev", epic.Description)
}

func TestRenderIsDeterministic(t *testing.T) {
	r := fixedRenderer(time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC))
	tmpl := &models.Template{
		Name:         "t",
		Summary:      "CC Gantt - {month_name} {year}",
		Labels:       []string{"gantt"},
		CustomFields: map[string]interface{}{"customfield_1": "x"},
		Stories:      []models.StorySpec{{Summary: "s {month}", StoryPoints: floatPtr(2)}},
	}
	first, err := r.Render(tmpl, nil)
	require.NoError(t, err)
	second, err := r.Render(tmpl, nil)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRenderStories(t *testing.T) {
	r := fixedRenderer(time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC))
	tmpl := &models.Template{
		Name:    "t",
		Summary: "epic",
		Stories: []models.StorySpec{
			{Summary: "Collect {month_short}", Description: "for {year}", StoryPoints: floatPtr(3), Labels: []string{"a"}},
			{Summary: "Publish"},
		},
	}
	epic, err := r.Render(tmpl, nil)
	require.NoError(t, err)
	require.Equal(t, []string{}, epic.Labels)
	require.Equal(t, []string{}, epic.Components)
	require.Equal(t, []models.RenderedStory{
		{Summary: "Collect Mar", Description: "for 2026", StoryPoints: floatPtr(3), Labels: []string{"a"}},
		{Summary: "Publish", Description: "", StoryPoints: nil, Labels: []string{}},
	}, epic.Stories)
}

func TestRenderMissingPlaceholder(t *testing.T) {
	r := fixedRenderer(time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC))
	tests := []struct {
		name  string
		tmpl  models.Template
		field string
		key   string
	}{
		{"summary", models.Template{Name: "t", Summary: "{team} {year}"}, "summary", "team"},
		{"description", models.Template{Name: "t", Summary: "ok", Description: "{owner}"}, "description", "owner"},
		{"story", models.Template{Name: "t", Summary: "ok", Stories: []models.StorySpec{{Summary: "x"}, {Summary: "{sprint}"}}}, "stories[1].summary", "sprint"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			epic, err := r.Render(&tc.tmpl, nil)
			require.Nil(t, epic)
			var renderErr *TemplateRenderError
			require.True(t, errors.As(err, &renderErr))
			require.Equal(t, "t", renderErr.Template)
			require.Equal(t, tc.field, renderErr.Field)
			require.Equal(t, tc.key, renderErr.Key)
			require.True(t, IsRenderError(err))
		})
	}
}

func TestSubstitute(t *testing.T) {
	ctx := RenderContext{"a": "1", "b": "two"}
	tests := []struct {
		pattern string
		want    string
		wantErr bool
	}{
		{pattern: "", want: ""},
		{pattern: "plain", want: "plain"},
		{pattern: "{a}-{b}", want: "1-two"},
		{pattern: "{{a}} {a}", want: "{a} 1"},
		{pattern: "日本語 {b}", want: "日本語 two"},
		{pattern: "{a", wantErr: true},
		{pattern: "a}", wantErr: true},
		{pattern: "{}", wantErr: true},
		{pattern: "{c}", wantErr: true},
	}
	for _, tc := range tests {
		got, err := substitute("t", "summary", tc.pattern, ctx)
		if tc.wantErr {
			require.Error(t, err, tc.pattern)
			require.Empty(t, got)
			continue
		}
		require.NoError(t, err, tc.pattern)
		require.Equal(t, tc.want, got)
	}
}
