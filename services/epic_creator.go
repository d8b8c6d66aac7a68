package services

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"recurringepics/config"
	"recurringepics/models"
	"recurringepics/utils"
)

// 前月エピックを閉じる際に探す遷移名。先に並んでいるものが優先されます
var terminalTransitionNames = []string{
	"done", "close", "closed", "complete", "completed", "resolve", "resolved",
}

// StartDateFieldNames は開始日フィールドの表示名候補です (JIRAのインスタンスごとにIDが異なる)
var StartDateFieldNames = []string{"Start date", "Start Date", "startDate"}

const (
	epicIssueType  = "Epic"
	storyIssueType = "Story"
)

// OutcomeStatus はテンプレート1件分の処理結果の種別です
type OutcomeStatus string

const (
	StatusCreated OutcomeStatus = "created"
	StatusSkipped OutcomeStatus = "skipped"
	StatusDryRun  OutcomeStatus = "dry-run"
	StatusFailed  OutcomeStatus = "failed"
)

// CreateOptions は月次エピック作成の指定です
type CreateOptions struct {
	Templates         []string // 空ならすべてのテンプレート
	Month             int      // 0 なら今月
	Year              int      // 0 なら今年
	Force             bool     // 同じサマリーのエピックがあっても作成する
	SkipClosePrevious bool
	Confirmed         bool // 既存エピックの確認を済ませている
	Overrides         RenderContext
}

// StoryOutcome はサブストーリー1件の作成結果です
type StoryOutcome struct {
	Summary     string
	Key         string
	StoryPoints *float64
	Err         error
}

// EpicOutcome はテンプレート1件の処理結果です
type EpicOutcome struct {
	Template string
	Status   OutcomeStatus
	Key      string
	Summary  string
	Epic     *models.RenderedEpic
	Stories  []StoryOutcome
	Err      error
}

// CloseOutcome は前月エピック1件のクローズ結果です
type CloseOutcome struct {
	Key        string
	Summary    string
	Closed     bool
	Transition string
	Err        error
}

// CreateResult は CreateMonthlyEpics の結果です。
// RequiresConfirmation が true の場合は ExistingEpics と Context だけが設定されます
type CreateResult struct {
	DryRun               bool
	RequiresConfirmation bool
	ExistingEpics        []models.IssueRef

	Year      int
	Month     time.Month
	Suffix    string
	Context   RenderContext
	StartDate time.Time
	EndDate   time.Time

	ClosePlanned bool // ドライラン時に前月エピックをクローズする予定か
	Closed       []CloseOutcome
	Outcomes     []EpicOutcome
}

// Count は指定した種別の結果件数を返します
func (r *CreateResult) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// PreviewResult はテンプレート1件のプレビューです
type PreviewResult struct {
	Template  string
	Epic      *models.RenderedEpic
	Context   RenderContext
	StartDate time.Time
	EndDate   time.Time
}

// ConnectionStatus は接続確認の結果です
type ConnectionStatus struct {
	Server  string
	OK      bool
	Project *models.ProjectInfo
	Err     error
}

// EpicCreator はテンプレートから月次エピックを作成するサービスです
type EpicCreator struct {
	config   *config.Config
	gateway  Gateway
	store    *TemplateStore
	renderer *TemplateRenderer
	dryRun   bool
	now      func() time.Time

	// 1回の実行の中で解決した開始日フィールドID
	startField         string
	startFieldResolved bool
}

// NewEpicCreator は新しいエピック作成サービスを作成します。
// プレビューのみの場合 gateway は nil でもかまいません
func NewEpicCreator(cfg *config.Config, gateway Gateway, store *TemplateStore, dryRun bool) *EpicCreator {
	return &EpicCreator{
		config:   cfg,
		gateway:  gateway,
		store:    store,
		renderer: NewTemplateRenderer(),
		dryRun:   dryRun,
		now:      time.Now,
	}
}

// SetClock は「現在時刻」を差し替えます
func (e *EpicCreator) SetClock(now func() time.Time) {
	e.now = now
	e.renderer.now = now
}

// DryRun はドライランモードかどうかを返します
func (e *EpicCreator) DryRun() bool {
	return e.dryRun
}

// Templates はテンプレートストアを返します
func (e *EpicCreator) Templates() *TemplateStore {
	return e.store
}

// resolveMonth は 0 を今月・今年に置き換えて月の範囲を確認します
func (e *EpicCreator) resolveMonth(month, year int) (int, time.Month, error) {
	now := e.now()
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	if month < 1 || month > 12 {
		return 0, 0, errors.Newf("月は 1〜12 で指定してください: %d", month)
	}
	return year, time.Month(month), nil
}

// Preview はJIRAに接続せずにテンプレートを展開します
func (e *EpicCreator) Preview(name string, month, year int, overrides RenderContext) (*PreviewResult, error) {
	y, m, err := e.resolveMonth(month, year)
	if err != nil {
		return nil, err
	}
	t, err := e.store.Get(name)
	if err != nil {
		return nil, err
	}
	ctx := CalendarContext(y, m).Merge(overrides)
	epic, err := e.renderer.Render(t, ctx)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{
		Template:  name,
		Epic:      epic,
		Context:   ctx,
		StartDate: utils.FirstWorkingDay(y, m),
		EndDate:   utils.LastWorkingDay(y, m),
	}, nil
}

// CreateMonthlyEpics は月次エピックを作成します。
// 対象月のエピックが既にあり未確認の場合は RequiresConfirmation を返し、何も変更しません
func (e *EpicCreator) CreateMonthlyEpics(opts CreateOptions) (*CreateResult, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "月次エピック作成")

	year, month, err := e.resolveMonth(opts.Month, opts.Year)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{
		DryRun:    e.dryRun,
		Year:      year,
		Month:     month,
		Suffix:    utils.MonthSuffix(year, month),
		Context:   CalendarContext(year, month),
		StartDate: utils.FirstWorkingDay(year, month),
		EndDate:   utils.LastWorkingDay(year, month),
	}
	e.startField, e.startFieldResolved = "", false

	// 既存エピックの確認
	if !e.dryRun && !opts.Confirmed {
		existing := e.FindCurrentMonthEpics(year, month)
		if len(existing) > 0 {
			utils.LogWarn("%s のエピックが既に %d 件あります。確認が必要です", result.Suffix, len(existing))
			result.RequiresConfirmation = true
			result.ExistingEpics = existing
			return result, nil
		}
	}

	utils.LogInfo("%s %s のエピックを作成します (開始: %s, 終了: %s)",
		result.Context["month_name"], result.Context["year"],
		utils.FormatDate(result.StartDate), utils.FormatDate(result.EndDate))

	// 前月エピックのクローズ
	if !opts.SkipClosePrevious {
		if e.dryRun {
			utils.LogInfo("[DRY RUN] 前月のエピックをクローズします")
			result.ClosePlanned = true
		} else {
			result.Closed = e.ClosePreviousMonthEpics(year, month)
		}
	}

	names := opts.Templates
	if len(names) == 0 {
		names = e.store.Names()
	}

	ctx := result.Context.Merge(opts.Overrides)
	for _, name := range names {
		outcome := e.CreateEpicFromTemplate(name, ctx, result.StartDate, result.EndDate, !opts.Force)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	utils.LogInfo("エピック作成が完了しました: 作成=%d, スキップ=%d, 失敗=%d",
		result.Count(StatusCreated), result.Count(StatusSkipped), result.Count(StatusFailed))
	return result, nil
}

// CreateEpicFromTemplate はテンプレート1件からエピック (とサブストーリー) を作成します。
// エラーは戻り値の Err に記録され、呼び出し元のループは止めません
func (e *EpicCreator) CreateEpicFromTemplate(name string, ctx RenderContext, start, end time.Time, skipIfExists bool) EpicOutcome {
	outcome := EpicOutcome{Template: name}
	fail := func(err error) EpicOutcome {
		utils.LogError("%s の作成に失敗: %v", name, err)
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}

	t, err := e.store.Get(name)
	if err != nil {
		return fail(err)
	}
	epic, err := e.renderer.Render(t, ctx)
	if err != nil {
		return fail(err)
	}
	outcome.Epic = epic
	outcome.Summary = epic.Summary

	if e.dryRun {
		utils.LogInfo("[DRY RUN] エピックを作成します: %s (%s 〜 %s)", epic.Summary, utils.FormatDate(start), utils.FormatDate(end))
		outcome.Status = StatusDryRun
		for _, story := range epic.Stories {
			outcome.Stories = append(outcome.Stories, StoryOutcome{Summary: story.Summary, StoryPoints: story.StoryPoints})
		}
		return outcome
	}

	if skipIfExists && e.EpicExists(epic.Summary) {
		utils.LogWarn("スキップ: エピックが既に存在します: %s", epic.Summary)
		outcome.Status = StatusSkipped
		return outcome
	}

	fields := e.epicFields(epic, start, end)
	ref, err := e.gateway.CreateIssue(e.config.JiraProjectKey, fields)
	if err != nil {
		return fail(err)
	}
	outcome.Status = StatusCreated
	outcome.Key = ref.Key
	utils.LogInfo("エピックを作成しました: %s - %s", ref.Key, epic.Summary)

	outcome.Stories = e.createStories(ref.Key, epic.Stories)
	return outcome
}

// epicFields はエピック作成用のフィールドを組み立てます
func (e *EpicCreator) epicFields(epic *models.RenderedEpic, start, end time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		"summary":     epic.Summary,
		"description": epic.Description,
		"issuetype":   map[string]string{"name": epicIssueType},
		"priority":    map[string]string{"name": epic.Priority},
	}
	if len(epic.Labels) > 0 {
		fields["labels"] = epic.Labels
	}
	if len(epic.Components) > 0 {
		components := make([]map[string]string, 0, len(epic.Components))
		for _, c := range epic.Components {
			components = append(components, map[string]string{"name": c})
		}
		fields["components"] = components
	}
	for k, v := range epic.CustomFields {
		fields[k] = v
	}
	if id := e.startDateField(); id != "" {
		fields[id] = utils.FormatDate(start)
	}
	fields["duedate"] = utils.FormatDate(end)
	return fields
}

// createStories はエピック配下にサブストーリーを作成します。失敗はストーリー単位で記録します
func (e *EpicCreator) createStories(epicKey string, stories []models.RenderedStory) []StoryOutcome {
	var outcomes []StoryOutcome
	for _, story := range stories {
		fields := map[string]interface{}{
			"summary":     story.Summary,
			"description": story.Description,
			"issuetype":   map[string]string{"name": storyIssueType},
			"parent":      map[string]string{"key": epicKey},
		}
		if len(story.Labels) > 0 {
			fields["labels"] = story.Labels
		}
		if story.StoryPoints != nil && e.config.StoryPointField != "" {
			fields[e.config.StoryPointField] = *story.StoryPoints
		}

		so := StoryOutcome{Summary: story.Summary, StoryPoints: story.StoryPoints}
		ref, err := e.gateway.CreateIssue(e.config.JiraProjectKey, fields)
		if err != nil {
			utils.LogWarn("ストーリー作成失敗 %s: %v", story.Summary, err)
			so.Err = err
		} else {
			so.Key = ref.Key
			utils.LogInfo("ストーリーを作成しました: %s (エピック %s)", ref.Key, epicKey)
		}
		outcomes = append(outcomes, so)
	}
	return outcomes
}

// startDateField は表示名から開始日フィールドのIDを解決します (1回の実行で1度だけ)
func (e *EpicCreator) startDateField() string {
	if e.startFieldResolved {
		return e.startField
	}
	e.startFieldResolved = true

	fields, err := e.gateway.ListFields()
	if err != nil {
		utils.LogWarn("フィールド一覧の取得に失敗しました。開始日は設定されません: %v", err)
		return ""
	}
	if f, ok := FindStartDateField(fields); ok {
		e.startField = f.ID
		return e.startField
	}
	utils.LogWarn("開始日フィールドが見つかりません。開始日は設定されません")
	return ""
}

// FindStartDateField はフィールド一覧から開始日フィールドを探します
func FindStartDateField(fields []models.FieldInfo) (models.FieldInfo, bool) {
	for _, f := range fields {
		for _, name := range StartDateFieldNames {
			if f.Name == name {
				return f, true
			}
		}
	}
	return models.FieldInfo{}, false
}

// EpicExists はサマリーが完全一致するエピックがプロジェクトにあるかを返します
func (e *EpicCreator) EpicExists(summary string) bool {
	jql := e.epicJQL() + " AND summary ~ " + quoteJQL(quoteJQL(summary))
	for _, issue := range e.gateway.SearchIssues(jql, e.config.MaxResults) {
		if issue.Summary == summary {
			return true
		}
	}
	return false
}

// FindCurrentMonthEpics は対象月のサフィックスを含む定例エピックを探します
func (e *EpicCreator) FindCurrentMonthEpics(year int, month time.Month) []models.IssueRef {
	suffix := utils.MonthSuffix(year, month)
	jql := e.epicJQL() +
		" AND summary ~ " + quoteJQL(e.config.SummaryPattern) +
		" AND summary ~ " + quoteJQL(suffix)

	var found []models.IssueRef
	for _, issue := range e.gateway.SearchIssues(jql, e.config.MaxResults) {
		if BelongsToMonth(issue.Summary, year, month) {
			found = append(found, issue)
		}
	}
	return found
}

// FindPreviousMonthEpics は対象月以外のサフィックスを持つ、未完了の定例エピックを探します
func (e *EpicCreator) FindPreviousMonthEpics(year int, month time.Month) []models.IssueRef {
	jql := e.epicJQL() +
		" AND summary ~ " + quoteJQL(e.config.SummaryPattern) +
		" AND status != Done AND status != Closed"

	var found []models.IssueRef
	for _, issue := range e.gateway.SearchIssues(jql, e.config.MaxResults) {
		if !BelongsToMonth(issue.Summary, year, month) {
			found = append(found, issue)
		}
	}
	return found
}

// ClosePreviousMonthEpics は前月までの未完了エピックをクローズします。
// クローズできなかったエピックは結果に記録し、処理は続行します
func (e *EpicCreator) ClosePreviousMonthEpics(year int, month time.Month) []CloseOutcome {
	utils.LogInfo("前月のエピックをクローズしています...")

	previous := e.FindPreviousMonthEpics(year, month)
	if len(previous) == 0 {
		utils.LogInfo("クローズ対象の前月エピックはありません")
		return nil
	}

	outcomes := make([]CloseOutcome, 0, len(previous))
	for _, issue := range previous {
		outcome := e.closeEpic(issue)
		if outcome.Closed {
			utils.LogInfo("クローズしました: %s - %s", issue.Key, issue.Summary)
		} else {
			utils.LogWarn("クローズできませんでした: %s (手動での遷移が必要かもしれません): %v", issue.Key, outcome.Err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (e *EpicCreator) closeEpic(issue models.IssueRef) CloseOutcome {
	outcome := CloseOutcome{Key: issue.Key, Summary: issue.Summary}

	transitions, err := e.gateway.ListTransitions(issue.Key)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	t, ok := PickTerminalTransition(transitions)
	if !ok {
		outcome.Err = errors.Newf("%s に終了系の遷移がありません", issue.Key)
		return outcome
	}
	outcome.Transition = t.Name
	if err := e.gateway.ApplyTransition(issue.Key, t.ID); err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Closed = true
	return outcome
}

// TestConnection はJIRA認証とプロジェクトの参照を確認します
func (e *EpicCreator) TestConnection() ConnectionStatus {
	status := ConnectionStatus{Server: e.config.JiraServer}
	if !e.gateway.TestAuth() {
		status.Err = errors.New("JIRA認証に失敗しました")
		return status
	}
	status.OK = true

	project, err := e.gateway.GetProject(e.config.JiraProjectKey)
	if err != nil {
		status.Err = err
		return status
	}
	status.Project = &project
	return status
}

// PickTerminalTransition は優先順に終了系の遷移を探します (大文字小文字は区別しない)
func PickTerminalTransition(transitions []models.Transition) (models.Transition, bool) {
	for _, name := range terminalTransitionNames {
		for _, t := range transitions {
			if strings.EqualFold(t.Name, name) {
				return t, true
			}
		}
	}
	return models.Transition{}, false
}

// BelongsToMonth はサマリーが指定月のサフィックス (例: Mar'26) を含むかを返します
func BelongsToMonth(summary string, year int, month time.Month) bool {
	return strings.Contains(summary, utils.MonthSuffix(year, month))
}

func (e *EpicCreator) epicJQL() string {
	return "project = " + quoteJQL(e.config.JiraProjectKey) + " AND issuetype = " + epicIssueType
}

// quoteJQL は文字列をJQLのダブルクォート文字列にします
func quoteJQL(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
