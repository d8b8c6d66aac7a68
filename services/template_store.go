package services

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"recurringepics/models"
	"recurringepics/utils"
)

// DefaultPriority はテンプレートで priority が省略された場合の値です
const DefaultPriority = "Medium"

// templateFile は1つのテンプレートファイルの内容です。
// templates: リストがあればそれを使い、なければファイル全体を1テンプレートとして扱います
type templateFile struct {
	Templates *[]models.Template `yaml:"templates"`
}

// TemplateStore は読み込んだテンプレートを名前で管理します
type TemplateStore struct {
	templates map[string]*models.Template
	order     []string
}

// NewTemplateStore は空のテンプレートストアを作成します
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{templates: make(map[string]*models.Template)}
}

// LoadTemplates はディレクトリ内の *.yaml と *.yml をすべて読み込みます。
// ディレクトリが存在しない場合は空のストアを返します
func LoadTemplates(dir string) (*TemplateStore, error) {
	store := NewTemplateStore()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		utils.LogWarn("テンプレートフォルダが見つかりません: %s", dir)
		return store, nil
	}

	for _, pattern := range []string{"*.yaml", "*.yml"} {
		files, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, errors.Wrapf(err, "テンプレート検索エラー: %s", dir)
		}
		for _, file := range files {
			if err := store.LoadFile(file); err != nil {
				return nil, err
			}
		}
	}

	utils.LogInfo("テンプレートを読み込みました: %d 件 (%s)", len(store.order), dir)
	return store, nil
}

// LoadFile は1つのテンプレートファイルを読み込んでストアに追加します
func (s *TemplateStore) LoadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "テンプレート読み込みエラー: %s", path)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil
	}

	var file templateFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return errors.Wrapf(err, "テンプレート解析エラー: %s", path)
	}

	var defs []models.Template
	if file.Templates != nil {
		defs = *file.Templates
	} else {
		var single models.Template
		if err := yaml.Unmarshal(content, &single); err != nil {
			return errors.Wrapf(err, "テンプレート解析エラー: %s", path)
		}
		defs = []models.Template{single}
	}

	for i := range defs {
		def := defs[i]
		if def.Name == "" {
			return errors.Newf("テンプレート %d 件目に name がありません: %s", i+1, path)
		}
		if def.Summary == "" {
			return errors.Newf("テンプレート '%s' に summary がありません: %s", def.Name, path)
		}
		s.Add(normalizeTemplate(def))
	}
	return nil
}

// Add はテンプレートを登録します。同名のテンプレートは後から追加したものが優先されます
func (s *TemplateStore) Add(t *models.Template) {
	if _, ok := s.templates[t.Name]; !ok {
		s.order = append(s.order, t.Name)
	}
	s.templates[t.Name] = t
}

// Get は名前でテンプレートを取得します
func (s *TemplateStore) Get(name string) (*models.Template, error) {
	t, ok := s.templates[name]
	if !ok {
		return nil, &TemplateNotFoundError{Name: name}
	}
	return t, nil
}

// Names は読み込み順のテンプレート名一覧を返します
func (s *TemplateStore) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// All は読み込み順ですべてのテンプレートを返します
func (s *TemplateStore) All() []*models.Template {
	all := make([]*models.Template, 0, len(s.order))
	for _, name := range s.order {
		all = append(all, s.templates[name])
	}
	return all
}

// デフォルト値を埋める
func normalizeTemplate(t models.Template) *models.Template {
	if t.Priority == "" {
		t.Priority = DefaultPriority
	}
	if t.Labels == nil {
		t.Labels = []string{}
	}
	if t.Components == nil {
		t.Components = []string{}
	}
	if t.CustomFields == nil {
		t.CustomFields = map[string]interface{}{}
	}
	return &t
}
