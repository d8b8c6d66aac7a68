package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func (a *app) newTestConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "JIRAへの接続と認証を確認します",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(true)
			if err != nil {
				return err
			}
			creator, err := a.newCreator(cfg, true)
			if err != nil {
				return err
			}

			status := creator.TestConnection()
			renderConnection(cmd.OutOrStdout(), status)
			if !status.OK {
				return errors.New("JIRAに接続できませんでした")
			}
			return status.Err
		},
	}
}
