package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/347255699/comfystyle/pkg/comfyctl"
	"github.com/347255699/comfystyle/pkg/config"
)

// env is filled in before any subcommand runs.
type env struct {
	v   *viper.Viper
	cfg *config.Config
}

// client builds a server client from the loaded config.
func (e *env) client() *comfyctl.ComfyCtl {
	var cli *comfyctl.ComfyCtl
	if e.cfg.Server.Plaintext {
		cli = comfyctl.NewWithPlainText(e.cfg.Server.Host, e.cfg.Server.ClientID)
	} else {
		cli = comfyctl.New(e.cfg.Server.Host, e.cfg.Server.ClientID)
	}
	return cli.WithTimeout(e.cfg.Server.Timeout)
}

func Commands() *cobra.Command {
	e := &env{}
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "cfy",
		Short:         "cfy is a comfyui cli",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./cfy.yaml)")
	flags.StringP("connect", "c", "127.0.0.1:8188", "connect to comfyui server")
	flags.String("id", "", "client id")
	flags.Bool("plaintext", true, "use plaintext connection")
	flags.Duration("http-timeout", 0, "timeout for each request to the server")
	flags.String("log-level", "info", "log level")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		v, err := config.New(cfgFile)
		if err != nil {
			return err
		}
		for key, flag := range map[string]string{
			"server.host":      "connect",
			"server.client_id": "id",
			"server.plaintext": "plaintext",
			"server.timeout":   "http-timeout",
			"log.level":        "log-level",
		} {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return err
			}
		}
		for key, flag := range localBindings[cmd.Name()] {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}

		if e.cfg, err = config.Load(v); err != nil {
			return err
		}
		e.v = v
		setupLogging(e.cfg.Log.Level)
		log.Debug().Str("config", v.ConfigFileUsed()).Msg("Configuration loaded")
		return nil
	}

	cmd.AddCommand(QueuePrompt(e))
	cmd.AddCommand(Watch(e))
	cmd.AddCommand(Styles(e))
	cmd.AddCommand(Serve(e))
	return cmd
}

// localBindings maps config keys to subcommand flags that may override them.
var localBindings = map[string]map[string]string{
	"qp": {
		"workflow.path":   "file",
		"output.dir":      "output",
		"output.timeout":  "timeout",
		"output.interval": "interval",
	},
	"styles": {"styles.path": "styles"},
	"serve": {
		"ui.addr":         "addr",
		"workflow.path":   "file",
		"styles.path":     "styles",
		"output.dir":      "output",
		"output.timeout":  "timeout",
		"output.interval": "interval",
	},
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
