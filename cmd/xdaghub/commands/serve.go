package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/api"
	"github.com/AlexZinkM/xdaghub/internal/app"
	"github.com/AlexZinkM/xdaghub/internal/config"
	"github.com/AlexZinkM/xdaghub/internal/handler"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var unlock bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the signer HTTP API",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := app.NewWire(cfg)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, w.Close()) }()

			if err := w.Start(ctx); err != nil {
				return err
			}
			if unlock {
				if err := unlockAtStartup(ctx, w); err != nil {
					return err
				}
			}

			token := cfg.UIToken
			if token == "" {
				if token, err = handler.NewUIToken(); err != nil {
					return err
				}
				// the UI reads its token from stdout
				fmt.Fprintf(cmd.OutOrStdout(), "UI token: %s\n", token)
			}

			srv := &http.Server{
				Addr:              cfg.Addr(),
				Handler:           api.SetupRouter(w, token),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Infow("listening", "addr", srv.Addr, "node", w.Node.URL(), "network", cfg.Network)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			// pending dApp calls return once their surfaces close
			w.Surfaces.CloseAll()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&unlock, "unlock", false, "prompt for the vault password and unlock before serving")
	return cmd
}

func unlockAtStartup(ctx context.Context, w *app.Wire) error {
	ok, err := w.Keyring.IsWalletInitialized(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no vault in %s, run `xdaghub vault create` first", cfg.StorePath)
	}

	if err := config.PromptForPassword("Vault password: "); err != nil {
		return err
	}
	defer config.ClearPassword()
	pw, err := config.GetPasswordBytes()
	if err != nil {
		return err
	}
	defer clear(pw)

	if err := w.Keyring.Unlock(ctx, pw); err != nil {
		return err
	}
	log.Info("vault unlocked")
	return nil
}
