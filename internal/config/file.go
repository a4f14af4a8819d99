package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ChatConfig holds the chat front end settings that can come from a TOML
// file. Flags layer on top of these after loading.
type ChatConfig struct {
	// ServerCommand is the argv used to spawn the registration server.
	ServerCommand []string

	// LedgerPath is passed to the server as --ledger.
	LedgerPath string

	// Timeout bounds each tool call.
	Timeout time.Duration

	// Theme selects the markdown rendering style (auto, dark, light,
	// notty).
	Theme string

	// Plain disables the terminal UI in favor of a line-oriented REPL.
	Plain bool
}

// DefaultChatConfig returns the chat defaults applied before any file or
// flag.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		ServerCommand: DefaultServerCommand(),
		Timeout:       DefaultCallTimeout,
		Theme:         "auto",
	}
}

// chatFileConfig mirrors the TOML schema of the chat config file.
type chatFileConfig struct {
	Server  []string `toml:"server"`
	Ledger  string   `toml:"ledger"`
	Timeout string   `toml:"timeout"`
	Theme   string   `toml:"theme"`
	Plain   bool     `toml:"plain"`
}

// LoadChatConfig overlays the TOML file at path onto the defaults. Only
// keys actually present in the file override, so a sparse file keeps the
// remaining defaults intact.
func LoadChatConfig(path string) (ChatConfig, error) {
	cfg := DefaultChatConfig()

	var raw chatFileConfig

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ChatConfig{}, fmt.Errorf("load chat config: %w", err)
	}

	if meta.IsDefined("server") && len(raw.Server) > 0 {
		cfg.ServerCommand = raw.Server
	}

	if meta.IsDefined("ledger") {
		cfg.LedgerPath = strings.TrimSpace(raw.Ledger)
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return ChatConfig{}, fmt.Errorf("parse timeout: %w", err)
		}

		cfg.Timeout = d
	}

	if meta.IsDefined("theme") {
		cfg.Theme = strings.TrimSpace(raw.Theme)
	}

	if meta.IsDefined("plain") {
		cfg.Plain = raw.Plain
	}

	return cfg, nil
}
