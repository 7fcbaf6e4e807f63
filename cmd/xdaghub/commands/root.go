package commands

import (
	"github.com/AlexZinkM/xdaghub/internal/config"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
)

var (
	log = logging.Logger("cmd")

	cfg *config.Config
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xdaghub",
		Short:         "Local XDAG wallet signer",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(); err != nil {
				return err
			}
			cfg = config.Get()
			return logging.SetLogLevel("*", cfg.LogLevel)
		},
	}

	root.AddCommand(serveCmd(), vaultCmd(), chunkCmd())
	return root
}
