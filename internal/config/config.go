// Package config provides configuration management for scadform using Viper
// for flexible configuration loading from files, environment variables, and
// command-line flags.
//
// Configuration is read from .scadform.yml, overridden by SCADFORM_-prefixed
// environment variables, overridden in turn by bound command-line flags. It
// covers the server, the build engine contract, the external library host,
// caching and logging.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Library LibraryConfig `yaml:"library"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
	Watch   WatchConfig   `yaml:"watch"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type EngineConfig struct {
	Command        string        `yaml:"command"`
	OutputFlag     string        `yaml:"output_flag"`
	DefineFlag     string        `yaml:"define_flag"`
	LibraryPathEnv string        `yaml:"library_path_env"`
	Timeout        time.Duration `yaml:"timeout"`
}

type LibraryConfig struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	ListingURL string `yaml:"listing_url"`
	FileURL    string `yaml:"file_url"`
}

type CacheConfig struct {
	ArtifactEntries int `yaml:"artifact_entries"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8742,
		},
		Engine: EngineConfig{
			Command:        "openscad",
			OutputFlag:     "-o",
			DefineFlag:     "-D",
			LibraryPathEnv: "OPENSCADPATH",
		},
		Library: LibraryConfig{
			Name:       "MCAD",
			Version:    "master",
			ListingURL: "https://api.github.com/repos/openscad/MCAD/contents?ref={version}",
			FileURL:    "https://raw.githubusercontent.com/openscad/MCAD/{version}/{path}",
		},
		Cache: CacheConfig{ArtifactEntries: 256},
		Log:   LogConfig{Level: "info", Format: "text"},
		Watch: WatchConfig{Enabled: true, Debounce: 300 * time.Millisecond},
	}
}

// Load builds the effective configuration from viper's merged sources on top
// of the defaults, then validates it.
func Load() (*Config, error) {
	config := Default()

	if viper.IsSet("server.host") {
		config.Server.Host = viper.GetString("server.host")
	}
	if viper.IsSet("server.port") {
		config.Server.Port = viper.GetInt("server.port")
	}
	if viper.IsSet("server.allowed_origins") {
		config.Server.AllowedOrigins = viper.GetStringSlice("server.allowed_origins")
	}

	if viper.IsSet("engine.command") {
		config.Engine.Command = viper.GetString("engine.command")
	}
	if viper.IsSet("engine.output_flag") {
		config.Engine.OutputFlag = viper.GetString("engine.output_flag")
	}
	if viper.IsSet("engine.define_flag") {
		config.Engine.DefineFlag = viper.GetString("engine.define_flag")
	}
	if viper.IsSet("engine.library_path_env") {
		config.Engine.LibraryPathEnv = viper.GetString("engine.library_path_env")
	}
	if viper.IsSet("engine.timeout") {
		config.Engine.Timeout = viper.GetDuration("engine.timeout")
	}

	if viper.IsSet("library.name") {
		config.Library.Name = viper.GetString("library.name")
	}
	if viper.IsSet("library.version") {
		config.Library.Version = viper.GetString("library.version")
	}
	if viper.IsSet("library.listing_url") {
		config.Library.ListingURL = viper.GetString("library.listing_url")
	}
	if viper.IsSet("library.file_url") {
		config.Library.FileURL = viper.GetString("library.file_url")
	}

	if viper.IsSet("cache.artifact_entries") {
		config.Cache.ArtifactEntries = viper.GetInt("cache.artifact_entries")
	}

	if viper.IsSet("log.level") {
		config.Log.Level = viper.GetString("log.level")
	}
	if viper.IsSet("log.format") {
		config.Log.Format = viper.GetString("log.format")
	}

	if viper.IsSet("watch.enabled") {
		config.Watch.Enabled = viper.GetBool("watch.enabled")
	}
	if viper.IsSet("watch.debounce") {
		config.Watch.Debounce = viper.GetDuration("watch.debounce")
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func validate(config *Config) error {
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port %d is not in valid range 0-65535", config.Server.Port)
	}
	if err := validateCommand(config.Engine.Command); err != nil {
		return fmt.Errorf("engine command: %w", err)
	}
	if config.Engine.Timeout < 0 {
		return fmt.Errorf("engine timeout must not be negative")
	}
	if config.Library.Name == "" {
		return fmt.Errorf("library name must not be empty")
	}
	for _, u := range []string{config.Library.ListingURL, config.Library.FileURL} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("library URL %q must be http or https", u)
		}
	}
	if config.Cache.ArtifactEntries <= 0 {
		return fmt.Errorf("cache artifact_entries must be positive")
	}
	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format %q must be text or json", config.Log.Format)
	}
	return nil
}

// validateCommand rejects engine commands carrying shell metacharacters; the
// command is executed directly, never through a shell, but a value like
// `openscad; rm` coming from a config file is a misconfiguration either way.
func validateCommand(command string) error {
	if command == "" {
		return fmt.Errorf("must not be empty")
	}
	dangerous := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerous {
		if strings.Contains(command, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}
	return nil
}
