package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config is the client configuration, loadable from environment variables
// (MUNCH_ prefix) or YAML config files. Command line flags override it.
type Config struct {
	APIURL     string        `default:"http://localhost:8080" usage:"Backend base URL" env:"API_URL" yaml:"api_url"`
	StateFile  string        `usage:"Session file (default $XDG_CONFIG_HOME/munchify/session.yaml)" env:"STATE_FILE" yaml:"state_file"`
	MenuFile   string        `usage:"Menu JSON overriding the built-in menu" env:"MENU_FILE" yaml:"menu_file"`
	LogLevel   string        `default:"warn" usage:"Log level (debug, info, warn, error)" env:"LOG_LEVEL" yaml:"log_level"`
	Timeout    time.Duration `default:"15s" usage:"Per-request timeout" yaml:"timeout"`
	RetryDelay time.Duration `default:"1s" usage:"Pause before retrying a transient failure" env:"RETRY_DELAY" yaml:"retry_delay"`
}

func configFiles() []string {
	files := []string{"munch.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		files = append(files, filepath.Join(dir, "munchify", "config.yaml"))
	}
	return files
}

// LoadConfig loads the configuration from the environment and config files.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: true,
		EnvPrefix: "MUNCH",
		Files:     configFiles(),
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return &cfg, nil
}
