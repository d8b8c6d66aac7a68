package models

// StorySpec はテンプレート内のサブストーリー定義を表します
type StorySpec struct {
	Summary     string   `yaml:"summary"`
	Description string   `yaml:"description"`
	StoryPoints *float64 `yaml:"story_points"`
	Labels      []string `yaml:"labels"`
}

// Template は月次エピックのテンプレートを表します (読み込み後は変更しない)
type Template struct {
	Name         string                 `yaml:"name"`
	Summary      string                 `yaml:"summary"`
	Description  string                 `yaml:"description"`
	Labels       []string               `yaml:"labels"`
	Components   []string               `yaml:"components"`
	Priority     string                 `yaml:"priority"`
	CustomFields map[string]interface{} `yaml:"custom_fields"`
	Stories      []StorySpec            `yaml:"stories"`
}

// RenderedStory はプレースホルダー置換後のサブストーリーです
type RenderedStory struct {
	Summary     string
	Description string
	StoryPoints *float64 // 未設定の場合はnil
	Labels      []string
}

// RenderedEpic はテンプレートにコンテキストを適用した結果です
type RenderedEpic struct {
	Summary      string
	Description  string
	Labels       []string
	Components   []string
	Priority     string
	CustomFields map[string]interface{}
	Stories      []RenderedStory
}

// IssueRef はJIRA側のイシューへの参照です (Key PROJECT-123 形式)
type IssueRef struct {
	Key     string
	Summary string
	Status  string
}

// Transition はワークフロー遷移を表します
type Transition struct {
	ID   string
	Name string
}

// ProjectInfo はJIRAプロジェクトの基本情報です
type ProjectInfo struct {
	Key  string
	Name string
}

// FieldInfo はJIRAフィールドのIDと表示名です
type FieldInfo struct {
	ID   string
	Name string
}
