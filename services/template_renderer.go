package services

import (
	"fmt"
	"strings"
	"time"

	"recurringepics/models"
	"recurringepics/utils"
)

// RenderContext はプレースホルダー名から値へのマッピングです
type RenderContext map[string]string

// CalendarContext は指定月のカレンダー由来のコンテキストを作成します
func CalendarContext(year int, month time.Month) RenderContext {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return RenderContext{
		"month":       d.Format("01"),
		"month_name":  d.Format("January"),
		"month_short": d.Format("Jan"),
		"year":        d.Format("2006"),
		"year_short":  d.Format("06"),
		"quarter":     utils.Quarter(month),
	}
}

// Merge は overrides を上書きした新しいコンテキストを返します
func (c RenderContext) Merge(overrides RenderContext) RenderContext {
	merged := make(RenderContext, len(c)+len(overrides))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// TemplateRenderer はテンプレートのプレースホルダーを置換します
type TemplateRenderer struct {
	now func() time.Time
}

// NewTemplateRenderer は現在時刻を使うレンダラーを作成します
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{now: time.Now}
}

// Render は「現在」の月のコンテキストに overrides を重ねてテンプレートを展開します。
// 未定義のプレースホルダーがあれば *TemplateRenderError を返し、部分的な結果は返しません
func (r *TemplateRenderer) Render(t *models.Template, overrides RenderContext) (*models.RenderedEpic, error) {
	now := r.now()
	ctx := CalendarContext(now.Year(), now.Month()).Merge(overrides)

	summary, err := substitute(t.Name, "summary", t.Summary, ctx)
	if err != nil {
		return nil, err
	}
	description, err := substitute(t.Name, "description", t.Description, ctx)
	if err != nil {
		return nil, err
	}

	rendered := &models.RenderedEpic{
		Summary:      summary,
		Description:  description,
		Labels:       nonNil(t.Labels),
		Components:   nonNil(t.Components),
		Priority:     t.Priority,
		CustomFields: t.CustomFields,
		Stories:      []models.RenderedStory{},
	}
	if rendered.Priority == "" {
		rendered.Priority = DefaultPriority
	}

	for i, story := range t.Stories {
		storySummary, err := substitute(t.Name, storyField(i, "summary"), story.Summary, ctx)
		if err != nil {
			return nil, err
		}
		storyDescription, err := substitute(t.Name, storyField(i, "description"), story.Description, ctx)
		if err != nil {
			return nil, err
		}
		rendered.Stories = append(rendered.Stories, models.RenderedStory{
			Summary:     storySummary,
			Description: storyDescription,
			StoryPoints: story.StoryPoints,
			Labels:      nonNil(story.Labels),
		})
	}

	return rendered, nil
}

func storyField(i int, name string) string {
	return fmt.Sprintf("stories[%d].%s", i, name)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// substitute は {key} を置換します。{{ と }} はそれぞれ { と } になります
func substitute(template, field, pattern string, ctx RenderContext) (string, error) {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '{':
			if i+1 < len(pattern) && pattern[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return "", &TemplateRenderError{Template: template, Field: field, Reason: "'{' が閉じられていません"}
			}
			key := pattern[i+1 : i+1+end]
			if key == "" {
				return "", &TemplateRenderError{Template: template, Field: field, Reason: "空のプレースホルダー {} があります"}
			}
			value, ok := ctx[key]
			if !ok {
				return "", &TemplateRenderError{Template: template, Field: field, Key: key}
			}
			b.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(pattern) && pattern[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", &TemplateRenderError{Template: template, Field: field, Reason: "対応する '{' のない '}' があります"}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
