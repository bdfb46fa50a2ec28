package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/347255699/comfystyle/pkg/generate"
	"github.com/347255699/comfystyle/pkg/styles"
	"github.com/347255699/comfystyle/pkg/types"
	"github.com/347255699/comfystyle/pkg/ui"
	"github.com/347255699/comfystyle/pkg/waiter"
)

func Serve(e *env) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the interactive mixed style image generator",
	}
	flags := serveCmd.Flags()
	flags.String("addr", "", "listen address")
	flags.StringP("file", "f", "", "workflow file path")
	flags.String("styles", "", "style catalog csv")
	flags.StringP("output", "o", "", "directory the server writes images to")
	flags.Duration("timeout", 0, "how long to wait for each image")
	flags.Duration("interval", 0, "how often to look for the image")

	serveCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg := e.cfg

		// the template is read once; bad files fail before we listen
		template, err := types.TemplateFile(cfg.Workflow.Path).Load()
		if err != nil {
			return err
		}
		if _, err := styles.Load(cfg.Styles.Path); err != nil {
			return err
		}

		g := &generate.Generator{
			Template: template,
			Schema:   cfg.Schema(),
			Client:   e.client(),
			Wait:     waiter.Options{Dir: cfg.Output.Dir, Timeout: cfg.Output.Timeout, Interval: cfg.Output.Interval},
		}
		srv := &http.Server{
			Addr:              cfg.UI.Addr,
			Handler:           ui.NewServer(g, func() (*styles.Catalog, error) { return styles.Load(cfg.Styles.Path) }),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.UI.Addr).Str("server", cfg.Server.Host).Msg("Starting UI")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		log.Info().Msg("Shutting down UI")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Output.Timeout+5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}

	return serveCmd
}
