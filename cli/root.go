package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"recurringepics/api"
	"recurringepics/config"
	"recurringepics/services"
	"recurringepics/utils"
)

// Deps はコマンドが使う外部依存です。テストではインメモリの Gateway に差し替えます
type Deps struct {
	LoadConfig func(envPath string) (*config.Config, error)
	NewGateway func(cfg *config.Config) (services.Gateway, error)
	Now        func() time.Time
}

// DefaultDeps は本番用の依存を返します
func DefaultDeps() Deps {
	return Deps{
		LoadConfig: config.LoadConfig,
		NewGateway: func(cfg *config.Config) (services.Gateway, error) {
			client, err := api.NewJiraClient(cfg)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Now: time.Now,
	}
}

// globalOptions はすべてのサブコマンドで共通のフラグです
type globalOptions struct {
	dryRun       bool
	envFile      string
	templatesDir string
	quiet        bool
}

type app struct {
	deps Deps
	opts globalOptions
}

// NewRootCmd はルートコマンドとサブコマンドを組み立てます
func NewRootCmd(deps Deps) *cobra.Command {
	a := &app{deps: deps}

	root := &cobra.Command{
		Use:   "recurring-epics",
		Short: "テンプレートから月次エピックを作成します",
		Long: `テンプレート (YAML) から毎月の定例エピックをJIRAに作成し、
前月までの未完了エピックをクローズします。

JIRAの接続情報は .env または環境変数 (JIRA_SERVER, JIRA_EMAIL,
JIRA_API_TOKEN, JIRA_PROJECT_KEY) で指定します。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.opts.quiet {
				utils.SetInfoOutput(io.Discard)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&a.opts.dryRun, "dry-run", false, "JIRAを変更せずに実行内容を表示します")
	flags.StringVar(&a.opts.envFile, "env-file", "", ".envファイルのパス (省略時はカレントの .env)")
	flags.StringVar(&a.opts.templatesDir, "templates-dir", "", "テンプレートフォルダ (省略時は EPIC_TEMPLATES_DIR)")
	flags.BoolVarP(&a.opts.quiet, "quiet", "q", false, "情報ログを出力しません")

	root.AddCommand(
		a.newListTemplatesCmd(),
		a.newPreviewCmd(),
		a.newCreateCmd(),
		a.newTestConnectionCmd(),
		a.newNextRunsCmd(),
	)
	return root
}

// Execute は本番用の依存でルートコマンドを実行します
func Execute() error {
	if err := NewRootCmd(DefaultDeps()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("エラー:"), err)
		return err
	}
	return nil
}

// loadConfig は設定を読み込みます。requireJira の場合は接続情報を検証します
func (a *app) loadConfig(requireJira bool) (*config.Config, error) {
	cfg, err := a.deps.LoadConfig(a.opts.envFile)
	if err != nil {
		return nil, err
	}
	if a.opts.templatesDir != "" {
		cfg.TemplatesDir = a.opts.templatesDir
	}
	if requireJira {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newCreator はテンプレートを読み込んでエピック作成サービスを組み立てます。
// withGateway が false の場合はJIRAクライアントを作りません
func (a *app) newCreator(cfg *config.Config, withGateway bool) (*services.EpicCreator, error) {
	store, err := services.LoadTemplates(cfg.TemplatesDir)
	if err != nil {
		return nil, err
	}

	var gateway services.Gateway
	if withGateway {
		gateway, err = a.deps.NewGateway(cfg)
		if err != nil {
			return nil, err
		}
	}

	creator := services.NewEpicCreator(cfg, gateway, store, a.opts.dryRun)
	creator.SetClock(a.deps.Now)
	return creator, nil
}

// parseOverrides は --set key=value をレンダリングコンテキストにします
func parseOverrides(values []string) (services.RenderContext, error) {
	overrides := services.RenderContext{}
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Newf("--set は key=value の形式で指定してください: %q", v)
		}
		overrides[key] = value
	}
	return overrides, nil
}
