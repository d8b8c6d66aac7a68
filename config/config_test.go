package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"JIRA_SERVER", "JIRA_URL", "JIRA_EMAIL", "JIRA_API_TOKEN", "JIRA_PROJECT_KEY",
	"JIRA_STORY_POINT_FIELD", "JIRA_MAX_RESULTS", "EPIC_TEMPLATES_DIR",
	"EPIC_SUMMARY_PATTERN", "EPIC_SCHEDULE", "EPIC_REPORT_CSV",
}

// clearEnv はテスト中だけ設定用の環境変数を未設定にします。
// godotenv は既存の変数を上書きしないため、空文字ではなく Unsetenv が必要です
func clearEnv(t *testing.T) {
	for _, key := range configKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "customfield_10016", cfg.StoryPointField)
	require.Equal(t, 100, cfg.MaxResults)
	require.Equal(t, "templates", cfg.TemplatesDir)
	require.Equal(t, "CC Gantt", cfg.SummaryPattern)
	require.Equal(t, "0 9 1 * *", cfg.Schedule)
	require.Empty(t, cfg.ReportCSV)
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	content := "JIRA_SERVER=https://example.atlassian.net/\n" +
		"JIRA_EMAIL=ops@example.com\n" +
		"JIRA_API_TOKEN=secret\n" +
		"JIRA_PROJECT_KEY=OPS\n" +
		"JIRA_MAX_RESULTS=not-a-number\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "https://example.atlassian.net", cfg.JiraServer)
	require.Equal(t, "OPS", cfg.JiraProjectKey)
	require.Equal(t, 100, cfg.MaxResults)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingEnvFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestLoadConfigJiraURLFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("JIRA_URL", "https://legacy.example.com")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "https://legacy.example.com", cfg.JiraServer)
}

func TestValidateListsMissingKeys(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		missing []string
	}{
		{
			name:    "all missing",
			cfg:     Config{},
			missing: []string{"JIRA_SERVER", "JIRA_EMAIL", "JIRA_API_TOKEN", "JIRA_PROJECT_KEY"},
		},
		{
			name:    "token and project missing",
			cfg:     Config{JiraServer: "https://x", JiraEmail: "a@b"},
			missing: []string{"JIRA_API_TOKEN", "JIRA_PROJECT_KEY"},
		},
		{
			name: "complete",
			cfg:  Config{JiraServer: "https://x", JiraEmail: "a@b", JiraAPIToken: "t", JiraProjectKey: "P"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.missing == nil {
				require.NoError(t, err)
				return
			}
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			require.Equal(t, tc.missing, cfgErr.Missing)
			for _, key := range tc.missing {
				require.Contains(t, err.Error(), key)
			}
		})
	}
}
