package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// JIRA API設定
	JiraServer      string
	JiraEmail       string
	JiraAPIToken    string
	JiraProjectKey  string
	StoryPointField string
	MaxResults      int

	// テンプレートと月次エピックの設定
	TemplatesDir   string
	SummaryPattern string
	Schedule       string

	// 実行結果CSVの出力先 (空なら出力しない)
	ReportCSV string
}

// ConfigurationError は必須設定が不足している場合のエラーです
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf(
		"必須の環境変数が設定されていません: %s (.env.example を元に .env を作成してください)",
		strings.Join(e.Missing, ", "))
}

// LoadConfig は環境変数から設定を読み込みます。envPath が空の場合はカレントの .env を読み込みます
func LoadConfig(envPath string) (*Config, error) {
	// .envファイルを読み込む (存在しなくてもよい)
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf(".envファイル読み込みエラー: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	server := os.Getenv("JIRA_SERVER")
	if server == "" {
		server = os.Getenv("JIRA_URL")
	}

	config := &Config{
		JiraServer:      strings.TrimRight(server, "/"),
		JiraEmail:       os.Getenv("JIRA_EMAIL"),
		JiraAPIToken:    os.Getenv("JIRA_API_TOKEN"),
		JiraProjectKey:  os.Getenv("JIRA_PROJECT_KEY"),
		StoryPointField: getEnvWithDefault("JIRA_STORY_POINT_FIELD", "customfield_10016"),
		MaxResults:      getEnvAsIntWithDefault("JIRA_MAX_RESULTS", 100),
		TemplatesDir:    getEnvWithDefault("EPIC_TEMPLATES_DIR", "templates"),
		SummaryPattern:  getEnvWithDefault("EPIC_SUMMARY_PATTERN", "CC Gantt"),
		Schedule:        getEnvWithDefault("EPIC_SCHEDULE", "0 9 1 * *"),
		ReportCSV:       os.Getenv("EPIC_REPORT_CSV"),
	}

	return config, nil
}

// Validate はJIRA接続に必要な設定がすべて揃っているかを確認します
func (c *Config) Validate() error {
	var missing []string
	if c.JiraServer == "" {
		missing = append(missing, "JIRA_SERVER")
	}
	if c.JiraEmail == "" {
		missing = append(missing, "JIRA_EMAIL")
	}
	if c.JiraAPIToken == "" {
		missing = append(missing, "JIRA_API_TOKEN")
	}
	if c.JiraProjectKey == "" {
		missing = append(missing, "JIRA_PROJECT_KEY")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// デフォルト値付きで環境変数を取得
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// デフォルト値付きで環境変数を整数として取得
func getEnvAsIntWithDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}

	return value
}
