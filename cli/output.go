package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"recurringepics/models"
	"recurringepics/services"
	"recurringepics/utils"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

const (
	summaryColumnWidth = 50
	maxLabelsShown     = 3
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	return table
}

func renderTemplateTable(w io.Writer, templates []*models.Template) {
	if len(templates) == 0 {
		fmt.Fprintln(w, yellow("テンプレートが見つかりません"))
		return
	}

	table := newTable(w, "名前", "サマリーテンプレート", "ラベル")
	for _, t := range templates {
		labels := t.Labels
		if len(labels) > maxLabelsShown {
			labels = labels[:maxLabelsShown]
		}
		table.Append([]string{t.Name, truncate(t.Summary, summaryColumnWidth), strings.Join(labels, ", ")})
	}
	fmt.Fprintln(w, bold("利用可能なエピックテンプレート"))
	table.Render()
}

func renderPreview(w io.Writer, p *services.PreviewResult) {
	epic := p.Epic
	fmt.Fprintf(w, "\n%s\n\n", bold(fmt.Sprintf("'%s' のプレビュー", p.Template)))
	fmt.Fprintf(w, "%s %s\n", cyan("サマリー:"), epic.Summary)
	fmt.Fprintf(w, "%s %s\n", cyan("優先度:"), epic.Priority)
	fmt.Fprintf(w, "%s %s\n", cyan("ラベル:"), strings.Join(epic.Labels, ", "))
	if len(epic.Components) > 0 {
		fmt.Fprintf(w, "%s %s\n", cyan("コンポーネント:"), strings.Join(epic.Components, ", "))
	}
	fmt.Fprintf(w, "%s %s 〜 %s\n", cyan("期間:"), utils.FormatDate(p.StartDate), utils.FormatDate(p.EndDate))
	fmt.Fprintf(w, "\n%s\n%s\n", cyan("説明:"), epic.Description)

	if len(epic.Stories) > 0 {
		fmt.Fprintf(w, "\n%s\n", cyan("ストーリー:"))
		for _, s := range epic.Stories {
			fmt.Fprintf(w, "  • %s%s\n", s.Summary, storyPoints(s.StoryPoints))
		}
	}
}

func renderExistingEpics(w io.Writer, r *services.CreateResult) {
	fmt.Fprintf(w, "\n%s %s %s のエピックが既に %d 件あります:\n\n",
		yellow("⚠ 警告:"), r.Context["month_name"], r.Context["year"], len(r.ExistingEpics))
	for _, epic := range r.ExistingEpics {
		fmt.Fprintf(w, "  • %s - %s\n", epic.Key, epic.Summary)
	}
	fmt.Fprintln(w)
}

func renderCreateResult(w io.Writer, r *services.CreateResult) {
	fmt.Fprintf(w, "\n%s\n", bold(fmt.Sprintf("%s %s のエピック", r.Context["month_name"], r.Context["year"])))
	fmt.Fprintln(w, faint(fmt.Sprintf("開始日: %s (第1営業日)", utils.FormatDate(r.StartDate))))
	fmt.Fprintln(w, faint(fmt.Sprintf("終了日: %s (最終営業日)", utils.FormatDate(r.EndDate))))
	fmt.Fprintln(w)

	if r.ClosePlanned {
		fmt.Fprintf(w, "%s 前月のエピックをクローズします\n\n", blue("[DRY RUN]"))
	}
	for _, c := range r.Closed {
		if c.Closed {
			fmt.Fprintf(w, "%s %s - %s\n", green("✓ クローズ:"), c.Key, c.Summary)
		} else {
			fmt.Fprintf(w, "%s %s (手動での遷移が必要かもしれません)\n", yellow("⚠ クローズできません:"), c.Key)
		}
	}
	if len(r.Closed) > 0 {
		fmt.Fprintln(w)
	}

	for _, o := range r.Outcomes {
		switch o.Status {
		case services.StatusCreated:
			fmt.Fprintf(w, "%s %s - %s\n", green("✓ 作成:"), o.Key, o.Summary)
		case services.StatusSkipped:
			fmt.Fprintf(w, "%s エピックは既に存在します: %s\n", yellow("⚠ スキップ:"), o.Summary)
		case services.StatusDryRun:
			fmt.Fprintf(w, "%s エピックを作成します: %s\n", blue("[DRY RUN]"), o.Summary)
		case services.StatusFailed:
			fmt.Fprintf(w, "%s %s\n", red(fmt.Sprintf("✗ %s の作成エラー:", o.Template)), o.Err)
		}
		for _, s := range o.Stories {
			switch {
			case s.Err != nil:
				fmt.Fprintf(w, "    %s %s: %v\n", red("✗"), s.Summary, s.Err)
			case s.Key != "":
				fmt.Fprintf(w, "    %s %s - %s%s\n", green("✓"), s.Key, s.Summary, storyPoints(s.StoryPoints))
			default:
				fmt.Fprintf(w, "    • %s%s\n", s.Summary, storyPoints(s.StoryPoints))
			}
		}
	}

	created, skipped, failed := r.Count(services.StatusCreated), r.Count(services.StatusSkipped), r.Count(services.StatusFailed)
	if r.DryRun {
		fmt.Fprintf(w, "\n%s\n", bold(fmt.Sprintf("[DRY RUN] %d 件のエピックを作成予定", r.Count(services.StatusDryRun))))
		return
	}
	summary := fmt.Sprintf("%d 件のエピックを作成しました (スキップ %d 件, 失敗 %d 件)", created, skipped, failed)
	if failed > 0 {
		fmt.Fprintf(w, "\n%s\n", red(summary))
		return
	}
	fmt.Fprintf(w, "\n%s\n", green(summary))
}

func renderConnection(w io.Writer, s services.ConnectionStatus) {
	fmt.Fprintf(w, "%s に接続しています...\n", s.Server)
	if !s.OK {
		fmt.Fprintln(w, red("✗ 接続に失敗しました"))
		return
	}
	fmt.Fprintln(w, green("✓ 接続に成功しました"))
	if s.Project != nil {
		fmt.Fprintf(w, "プロジェクト: %s (%s)\n", s.Project.Name, s.Project.Key)
	} else if s.Err != nil {
		fmt.Fprintf(w, "%s %v\n", red("プロジェクトを取得できません:"), s.Err)
	}
}

func renderNextRuns(w io.Writer, schedule string, runs []services.ScheduledRun) {
	fmt.Fprintf(w, "%s %s\n", cyan("スケジュール:"), schedule)
	table := newTable(w, "実行日時", "対象月", "開始日", "終了日")
	for _, run := range runs {
		table.Append([]string{
			run.At.Format("2006-01-02 15:04 MST"),
			run.Suffix,
			utils.FormatDate(run.StartDate),
			utils.FormatDate(run.EndDate),
		})
	}
	table.Render()
}

func storyPoints(points *float64) string {
	if points == nil {
		return ""
	}
	return fmt.Sprintf(" (%gpt)", *points)
}

// truncate は n 文字を超える部分を ... にします
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
