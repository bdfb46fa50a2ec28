package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/347255699/comfystyle/pkg/patch"
)

// EnvPrefix prefixes environment overrides, e.g. CFY_SERVER_HOST.
const EnvPrefix = "CFY"

type Config struct {
	Server struct {
		Host      string        `mapstructure:"host"`
		Plaintext bool          `mapstructure:"plaintext"`
		Timeout   time.Duration `mapstructure:"timeout"`
		ClientID  string        `mapstructure:"client_id"`
	} `mapstructure:"server"`
	Workflow struct {
		Path   string            `mapstructure:"path"`
		Schema map[string]string `mapstructure:"schema"`
	} `mapstructure:"workflow"`
	Styles struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"styles"`
	Output struct {
		Dir      string        `mapstructure:"dir"`
		Timeout  time.Duration `mapstructure:"timeout"`
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"output"`
	UI struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"ui"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1:8188")
	v.SetDefault("server.plaintext", true)
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.client_id", "")
	v.SetDefault("workflow.path", "workflow2.json")
	v.SetDefault("workflow.schema", map[string]string(patch.DefaultSchema()))
	v.SetDefault("styles.path", "styles.csv")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.timeout", 60*time.Second)
	v.SetDefault("output.interval", time.Second)
	v.SetDefault("ui.addr", ":8501")
	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults and environment lookup set up.
// When file is empty, cfy.yaml is searched in the working directory and
// ./config; a missing file is not an error in that case.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("cfy")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Host) == "" {
		return errors.New("config: server.host is empty")
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("config: server.timeout %s is negative", c.Server.Timeout)
	}
	if c.Output.Timeout <= 0 {
		return fmt.Errorf("config: output.timeout %s must be positive", c.Output.Timeout)
	}
	if c.Output.Interval <= 0 {
		return fmt.Errorf("config: output.interval %s must be positive", c.Output.Interval)
	}
	if err := c.Schema().Validate(); err != nil {
		return fmt.Errorf("config: workflow.schema: %w", err)
	}
	return nil
}

// Schema is the configured field paths, falling back to the default for any
// field the config leaves out.
func (c *Config) Schema() patch.Schema {
	s := patch.DefaultSchema()
	for field, path := range c.Workflow.Schema {
		s[strings.ToLower(field)] = path
	}
	return s
}
