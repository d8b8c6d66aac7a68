package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) newListTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-templates",
		Short: "利用可能なテンプレートを一覧表示します",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(false)
			if err != nil {
				return err
			}
			creator, err := a.newCreator(cfg, false)
			if err != nil {
				return err
			}
			renderTemplateTable(cmd.OutOrStdout(), creator.Templates().All())
			return nil
		},
	}
}

func (a *app) newPreviewCmd() *cobra.Command {
	var (
		month, year int
		sets        []string
	)
	cmd := &cobra.Command{
		Use:   "preview <template>",
		Short: "JIRAに接続せずにテンプレートの展開結果を表示します",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(false)
			if err != nil {
				return err
			}
			creator, err := a.newCreator(cfg, false)
			if err != nil {
				return err
			}
			preview, err := creator.Preview(args[0], month, year, overrides)
			if err != nil {
				return err
			}
			renderPreview(cmd.OutOrStdout(), preview)
			return nil
		},
	}
	cmd.Flags().IntVar(&month, "month", 0, "対象月 (1-12、省略時は今月)")
	cmd.Flags().IntVar(&year, "year", 0, "対象年 (省略時は今年)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "プレースホルダーの値 (key=value、複数指定可)")
	return cmd
}
