// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	DB       *string        `toml:"db"`
	Import   ImportConfig   `toml:"import"`
	Play     PlayConfig     `toml:"play"`
	Practice PracticeConfig `toml:"practice"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// ImportConfig maps import settings.
type ImportConfig struct {
	CollapseNewlines *bool `toml:"collapse-newlines"`
	NormalizeLetters *bool `toml:"normalize-letters"`
	AutoSplit        *bool `toml:"auto-split"`
	HeadingMaxLen    *int  `toml:"heading-max-len"`
}

// PlayConfig maps typing session settings.
type PlayConfig struct {
	User   *string `toml:"user"`
	Length *string `toml:"length"`
	Bypass *bool   `toml:"bypass"`
}

// PracticeConfig maps practice drill settings.
type PracticeConfig struct {
	Words      *int     `toml:"words"`
	Factor     *float64 `toml:"factor"`
	Top        *int     `toml:"top"`
	Window     *int     `toml:"window"`
	WordList   *string  `toml:"wordlist"`
	TextgenURL *string  `toml:"textgen-url"`
}

// ServerConfig maps HTTP API settings.
type ServerConfig struct {
	Addr *string `toml:"addr"`
}

// LogConfig maps structured logging settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Template is the commented config written by `typebook config`.
const Template = `# typebook configuration

# db = "~/.local/share/typebook/typebook.db"

[import]
# collapse-newlines = false
# normalize-letters = false
# auto-split = false
# heading-max-len = 80

[play]
# user = "me"
# length = "5m"   # "0" for open-ended sprints
# bypass = false

[practice]
# words = 60
# factor = 3.0
# top = 8
# window = 20
# wordlist = ""
# textgen-url = ""

[server]
# addr = ":8080"

[log]
# level = "info"  # debug, info, warn, error
# format = "text" # text or json
`
