package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/347255699/comfystyle/pkg/comfyctl"
)

func Watch(e *env) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch [prompt-id]",
		Short: "Track the execution status of the workflow in comfyui",
		Args:  cobra.MaximumNArgs(1),
	}

	watchCmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cli := e.client()
		log.Info().Str("client_id", cli.Id()).Msg("Client Id")
		w, err := cli.Dial(ctx)
		if err != nil {
			return err
		}
		defer w.Close()

		var promptId string
		if len(args) > 0 {
			promptId = args[0]
		}
		err = w.Watch(ctx, promptId, func(cr *comfyctl.ComfyResult) {})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	return watchCmd
}
