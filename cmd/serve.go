package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mattsolo1/grove-elements/pkg/server"
	"github.com/mattsolo1/grove-elements/pkg/store"
)

func NewServeCmd(logger **logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the elements REST service and push hub",
		Long: `Serve the collection over REST under /api and push notifications on
/socket. Data is kept in a sqlite database under the data directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log := *logger

			dbPath := filepath.Join(viper.GetString("data_dir"), "elements.db")
			st, err := store.New(dbPath, store.WithLogger(log.WithField("component", "store")))
			if err != nil {
				return err
			}
			defer st.Close()

			srv := server.New(st, log, nil)
			return srv.Run(ctx, viper.GetString("listen_addr"))
		},
	}

	cmd.Flags().String("listen", "", "Listen address (default :5023)")
	cmd.Flags().String("data-dir", "", "Directory holding elements.db")
	_ = viper.BindPFlag("listen_addr", cmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("data_dir", cmd.Flags().Lookup("data-dir"))
	return cmd
}
