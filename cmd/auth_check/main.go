package main

import (
	"flag"
	"fmt"
	"os"

	"recurringepics/api"
	"recurringepics/config"
	"recurringepics/services"
	"recurringepics/utils"
)

func main() {
	// フラグの定義
	envFile := flag.String("env-file", "", ".envファイルのパス")
	help := flag.Bool("help", false, "ヘルプを表示する")

	flag.Parse()

	if *help {
		printHelp()
		return
	}

	utils.LogInfo("JIRA認証確認ツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		utils.LogError("%v", err)
		os.Exit(1)
	}

	jiraClient, err := api.NewJiraClient(cfg)
	if err != nil {
		utils.LogError("%v", err)
		os.Exit(1)
	}

	// 認証チェック
	utils.LogInfo("JIRA APIの認証を確認しています...")
	if err := jiraClient.CheckAuth(); err != nil {
		utils.LogError("JIRA認証エラー: %v", err)
		utils.LogError("認証情報を確認してください。")
		os.Exit(1)
	}
	utils.LogInfo("JIRA認証成功！ 接続先: %s", cfg.JiraServer)

	// エピックを作成するプロジェクトの確認
	project, err := jiraClient.GetProject(cfg.JiraProjectKey)
	if err != nil {
		utils.LogError("プロジェクト %s を参照できません: %v", cfg.JiraProjectKey, err)
		os.Exit(1)
	}
	utils.LogInfo("プロジェクト: %s (%s)", project.Name, project.Key)

	// 開始日フィールドの確認
	fields, err := jiraClient.ListFields()
	if err != nil {
		utils.LogWarn("フィールド一覧を取得できません: %v", err)
		return
	}
	if f, ok := services.FindStartDateField(fields); ok {
		utils.LogInfo("開始日フィールド: %s (%s)", f.Name, f.ID)
		return
	}
	utils.LogWarn("開始日フィールドが見つかりません (候補: %v)。エピックには期日のみ設定されます", services.StartDateFieldNames)
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
JIRA認証確認ツール

使用方法:
  %s [オプション]

オプション:
  -env-file=PATH      .envファイルのパス (省略時はカレントの .env)
  -help               このヘルプを表示する

環境変数:
  JIRA_SERVER         JIRA URL (必須、JIRA_URL も可)
  JIRA_EMAIL          JIRA APIアカウントのメールアドレス (必須)
  JIRA_API_TOKEN      JIRA APIトークン (必須)
  JIRA_PROJECT_KEY    エピックを作成するプロジェクトキー (必須)

説明:
  このツールはJIRA APIの認証情報と、エピックを作成するプロジェクト、
  開始日フィールドが参照できるかを確認します。
`, os.Args[0])
}
