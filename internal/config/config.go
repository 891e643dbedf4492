package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagKey is the flag annotation naming the configuration key a flag overrides.
const FlagKey = "config_key"

var (
	configData Config
	v          *viper.Viper
)

// Config holds all configuration settings.
type Config struct {
	// Server configuration
	Server struct {
		Host string
		Port int
	}
	// Protocol configuration
	Protocol struct {
		Variant string
	}
	// Client configuration
	Client struct {
		Host     string
		Port     int
		PoolSize int `mapstructure:"pool_size"`
	}
	// Card store configuration
	Cards struct {
		Backend string
		Path    string
		Prefix  string
	}
	// Terminal identity carried by outbound requests
	Terminal struct {
		ID         string
		MerchantID string `mapstructure:"merchant_id"`
		AcquirerID string `mapstructure:"acquirer_id"`
	}
	// Dispatcher configuration
	Dispatcher struct {
		Balance string
	}
	// Admin HTTP configuration
	Admin struct {
		Enabled bool
		Port    int
	}
	// Logging configuration
	Log struct {
		Level      string
		Format     string
		File       string
		MaxSizeMB  int `mapstructure:"max_size_mb"`
		MaxBackups int `mapstructure:"max_backups"`
	}
}

// Address returns the server listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ClientAddress returns the address the client dials.
func (c *Config) ClientAddress() string {
	return fmt.Sprintf("%s:%d", c.Client.Host, c.Client.Port)
}

// Initialize sets up the configuration system.
func Initialize() error {
	v = viper.New()

	// Set config name and paths
	v.SetConfigName("config")            // name of config file (without extension)
	v.SetConfigType("yaml")              // config file type
	v.AddConfigPath(".")                 // optionally look for config in working directory
	v.AddConfigPath("$HOME/.go_cardsim") // look for config in .go_cardsim directory in home
	v.AddConfigPath("/etc/go_cardsim/")  // path to look for the config file in

	// Set default values
	setDefaults()

	// Environment variables
	v.SetEnvPrefix("CARDSIM") // prefix for env vars
	v.AutomaticEnv()          // read in environment variables that match
	v.SetEnvKeyReplacer(      // replace dots with underscores in env vars
		strings.NewReplacer(".", "_"),
	)

	// Create config file if it doesn't exist
	if err := ensureConfig(); err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}

	// Read in config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if we can't find a config file, we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return reload()
}

// InitializeWith sets up configuration from defaults and the given file only.
// It skips the home directory bootstrap and is used by tests and --config.
func InitializeWith(path string) error {
	v = viper.New()
	setDefaults()
	v.SetEnvPrefix("CARDSIM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return reload()
}

// Set overrides a key and refreshes the decoded configuration.
func Set(key string, value any) error {
	if v == nil {
		if err := InitializeWith(""); err != nil {
			return err
		}
	}
	v.Set(key, value)

	return reload()
}

func reload() error {
	configData = Config{}
	// Unmarshal config into struct
	if err := v.Unmarshal(&configData); err != nil {
		return fmt.Errorf("unable to decode into config struct: %w", err)
	}

	return nil
}

// setDefaults sets default values for all configuration options.
func setDefaults() {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8583)

	v.SetDefault("protocol.variant", "ascii")

	// Client defaults
	v.SetDefault("client.host", "localhost")
	v.SetDefault("client.port", 8583)
	v.SetDefault("client.pool_size", 1)

	// Card store defaults
	v.SetDefault("cards.backend", "csv")
	v.SetDefault("cards.path", "data/cards.csv")
	v.SetDefault("cards.prefix", "")

	v.SetDefault("terminal.id", "TERM0001")
	v.SetDefault("terminal.merchant_id", "MERCHANT0000001")
	v.SetDefault("terminal.acquirer_id", "123456")

	v.SetDefault("dispatcher.balance", "123.45")

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.port", 8080)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}

// ensureConfig creates a default config file if none exists.
func ensureConfig() error {
	dir := filepath.Join(os.Getenv("HOME"), ".go_cardsim")
	// Check if config directory exists
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		// Create default config file
		defaultConfig := `# GO CardSim Configuration File
server:
  host: localhost
  port: 8583

protocol:
  variant: ascii

client:
  host: localhost
  port: 8583
  pool_size: 1

cards:
  backend: csv
  path: data/cards.csv

terminal:
  id: TERM0001
  merchant_id: MERCHANT0000001
  acquirer_id: "123456"

dispatcher:
  balance: "123.45"

admin:
  enabled: false
  port: 8080

log:
  level: info
  format: human
  file: ""
  max_size_mb: 10
  max_backups: 3
`
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o644); err != nil {
			return err
		}
	}

	return nil
}

// Annotate marks flag name in fs as an override for key.
func Annotate(fs *pflag.FlagSet, name, key string) {
	_ = fs.SetAnnotation(name, FlagKey, []string{key})
}

// BindFlags binds every annotated flag of fs and refreshes the decoded
// configuration. Flags only take effect when set on the command line.
func BindFlags(fs *pflag.FlagSet) error {
	if v == nil {
		if err := InitializeWith(""); err != nil {
			return err
		}
	}

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[FlagKey]
		if len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return fmt.Errorf("binding flags: %w", bindErr)
	}

	return reload()
}

// Get returns the current configuration.
func Get() *Config {
	return &configData
}

// GetViper returns the viper instance.
func GetViper() *viper.Viper {
	return v
}
