package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/347255699/comfystyle/pkg/comfyctl"
	"github.com/347255699/comfystyle/pkg/generate"
	"github.com/347255699/comfystyle/pkg/styles"
	"github.com/347255699/comfystyle/pkg/types"
	"github.com/347255699/comfystyle/pkg/waiter"
)

func QueuePrompt(e *env) *cobra.Command {
	qpCmd := &cobra.Command{
		Use:   "qp",
		Short: "patch a workflow with prompts and queue it",
		Long: `Load a workflow, write the prompts, seed and a unique filename prefix into
the configured node paths, and queue it on the server. With --wait, poll the
output directory until the image shows up.`,
	}
	flags := qpCmd.Flags()
	positive := flags.StringP("prompt", "p", "", "what you want to draw")
	negative := flags.StringP("negative", "n", "", "what you do not want to see")
	seed := flags.Int64P("seed", "s", 0, "seed for sampler (default: keep the workflow's)")
	randomSeed := flags.Bool("random-seed", false, "pick a random seed")
	selected := flags.StringArray("style", nil, "style to mix in as Style/Substyle, repeatable, applied in order")
	data := flags.StringP("data", "d", "", "json values for template placeholders in the workflow file")
	flags.StringP("file", "f", "", "workflow file path")
	flags.StringP("output", "o", "", "directory the server writes images to")
	flags.Duration("timeout", 0, "how long to wait for the image")
	flags.Duration("interval", 0, "how often to look for the image")
	wait := flags.BoolP("wait", "w", false, "wait for the image to appear in the output directory")
	watch := flags.Bool("watch", false, "track the execution status of the workflow in comfyui")

	qpCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg := e.cfg

		values := map[string]interface{}{}
		if *data != "" {
			if !verifyJson(*data) {
				return errors.New("data is not a valid json")
			}
			if err := json.Unmarshal([]byte(*data), &values); err != nil {
				return err
			}
		}

		template, err := types.TemplateFile(cfg.Workflow.Path).Parse(values)
		if err != nil {
			return err
		}

		var seedp *int64
		switch {
		case *randomSeed:
			s := generate.RandomSeed()
			seedp = &s
			log.Info().Int64("seed", s).Msg("Seed")
		case cmd.Flags().Changed("seed"):
			seedp = seed
		}

		var catalog *styles.Catalog
		var selections []styles.Selection
		for _, s := range *selected {
			sel, err := styles.ParseSelection(s)
			if err != nil {
				return err
			}
			selections = append(selections, sel)
		}
		if len(selections) > 0 {
			if catalog, err = styles.Load(cfg.Styles.Path); err != nil {
				return err
			}
		}

		req, err := generate.Prepare(catalog, *positive, *negative, seedp, selections)
		if errors.Is(err, generate.ErrEmptyPrompt) {
			// keep whatever text the workflow already has
			req, err = &generate.Request{Negative: *negative, Seed: seedp, Token: generate.NewToken()}, nil
		}
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cli := e.client()
		log.Info().Str("client_id", cli.Id()).Msg("Client Id")

		var w *comfyctl.Watcher
		if *watch {
			if w, err = cli.Dial(ctx); err != nil {
				return err
			}
			defer w.Close()
		}

		g := &generate.Generator{Template: template, Schema: cfg.Schema(), Client: cli}
		if !*wait {
			doc, err := g.Document(req)
			if err != nil {
				return err
			}
			res, err := cli.Submit(ctx, doc)
			if err != nil {
				return err
			}
			if !res.Success() {
				return &comfyctl.StatusError{Code: res.StatusCode, Body: res.Body}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PromptId: %s\nToken: %s\n", res.PromptID(), req.Token)
			if w != nil {
				return w.Watch(ctx, res.PromptID(), func(*comfyctl.ComfyResult) {})
			}
			return nil
		}

		g.Wait = waiter.Options{Dir: cfg.Output.Dir, Timeout: cfg.Output.Timeout, Interval: cfg.Output.Interval}
		if w != nil {
			// progress is informational; the file on disk decides success
			go w.Watch(ctx, "", func(*comfyctl.ComfyResult) {})
		}
		out, err := g.Run(ctx, req)
		if err != nil {
			return err
		}
		switch out.Kind {
		case generate.KindDone:
			fmt.Fprintln(cmd.OutOrStdout(), out.ImagePath)
			return nil
		case generate.KindTimeout:
			return fmt.Errorf("%w: token %s", waiter.ErrTimeout, req.Token)
		default:
			return &comfyctl.StatusError{Code: out.StatusCode, Body: out.Body}
		}
	}

	return qpCmd
}

func verifyJson(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}
