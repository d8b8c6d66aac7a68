package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"recurringepics/services"
)

func (a *app) newNextRunsCmd() *cobra.Command {
	var (
		count    int
		schedule string
	)
	cmd := &cobra.Command{
		Use:   "next-runs",
		Short: "スケジュール (EPIC_SCHEDULE) の次回以降の実行予定を表示します",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return errors.Newf("-n は 1 以上で指定してください: %d", count)
			}
			cfg, err := a.loadConfig(false)
			if err != nil {
				return err
			}
			if schedule == "" {
				schedule = cfg.Schedule
			}

			runs, err := services.NextRuns(schedule, a.deps.Now(), count)
			if err != nil {
				return err
			}
			renderNextRuns(cmd.OutOrStdout(), schedule, runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 3, "表示する件数")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron式 (省略時は EPIC_SCHEDULE)")
	return cmd
}
