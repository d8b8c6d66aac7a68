package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"recurringepics/services"
	"recurringepics/utils"
)

type createFlags struct {
	templates       []string
	month, year     int
	force           bool
	noClosePrevious bool
	yes             bool
	sets            []string
	report          string
}

func (a *app) newCreateCmd() *cobra.Command {
	var f createFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "月次エピックを作成し、前月のエピックをクローズします",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCreate(cmd.InOrStdin(), cmd.OutOrStdout(), f)
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVarP(&f.templates, "templates", "t", nil, "作成するテンプレート名 (省略時はすべて)")
	flags.IntVar(&f.month, "month", 0, "対象月 (1-12、省略時は今月)")
	flags.IntVar(&f.year, "year", 0, "対象年 (省略時は今年)")
	flags.BoolVar(&f.force, "force", false, "同じサマリーのエピックがあっても作成します")
	flags.BoolVar(&f.noClosePrevious, "no-close-previous", false, "前月のエピックをクローズしません")
	flags.BoolVarP(&f.yes, "yes", "y", false, "確認をスキップします")
	flags.StringArrayVar(&f.sets, "set", nil, "プレースホルダーの値 (key=value、複数指定可)")
	flags.StringVar(&f.report, "report", "", "実行結果のCSV出力先 (省略時は EPIC_REPORT_CSV)")
	return cmd
}

func (a *app) runCreate(in io.Reader, out io.Writer, f createFlags) error {
	overrides, err := parseOverrides(f.sets)
	if err != nil {
		return err
	}
	cfg, err := a.loadConfig(true)
	if err != nil {
		return err
	}
	creator, err := a.newCreator(cfg, true)
	if err != nil {
		return err
	}

	opts := services.CreateOptions{
		Templates:         f.templates,
		Month:             f.month,
		Year:              f.year,
		Force:             f.force,
		SkipClosePrevious: f.noClosePrevious,
		Confirmed:         f.yes,
		Overrides:         overrides,
	}
	result, err := creator.CreateMonthlyEpics(opts)
	if err != nil {
		return err
	}

	if result.RequiresConfirmation {
		renderExistingEpics(out, result)
		if !confirm(in, out, "それでも新しいエピックを作成しますか? (重複する可能性があります)") {
			fmt.Fprintln(out, yellow("中止しました"))
			return nil
		}
		opts.Confirmed = true
		result, err = creator.CreateMonthlyEpics(opts)
		if err != nil {
			return err
		}
	}

	renderCreateResult(out, result)

	reportPath := f.report
	if reportPath == "" {
		reportPath = cfg.ReportCSV
	}
	if reportPath != "" {
		if err := services.WriteReportCSV(reportPath, result); err != nil {
			return err
		}
		utils.LogInfo("実行結果を出力しました: %s", reportPath)
	}

	if failed := result.Count(services.StatusFailed); failed > 0 {
		return errors.Newf("%d 件のテンプレートでエピック作成に失敗しました", failed)
	}
	return nil
}

// confirm は [y/N] で確認します。y / yes 以外はすべて No です
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
