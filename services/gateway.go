package services

import "recurringepics/models"

// Gateway はオーケストレーターが使うJIRA操作の最小インターフェースです。
// 本番は api.JiraClient、テストは api.MemoryClient が実装します。
type Gateway interface {
	// CreateIssue は fields でイシューを作成します。失敗は *TrackerError を返します
	CreateIssue(projectKey string, fields map[string]interface{}) (models.IssueRef, error)
	// SearchIssues はJQLで検索します。失敗時はエラーを返さず空の結果になります
	SearchIssues(jql string, maxResults int) []models.IssueRef
	ListTransitions(issueKey string) ([]models.Transition, error)
	ApplyTransition(issueKey, transitionID string) error
	GetProject(projectKey string) (models.ProjectInfo, error)
	ListFields() ([]models.FieldInfo, error)
	TestAuth() bool
}
