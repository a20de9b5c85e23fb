// Package config resolves claude-jail settings from CLI overrides,
// environment variables, a single discovered YAML config file, and built-in
// defaults, in that precedence order.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Source identifies which tier a resolved setting came from.
type Source int

const (
	SourceDefault Source = iota
	SourceFile
	SourceEnv
	SourceFlag
)

func (s Source) String() string {
	switch s {
	case SourceFile:
		return "file"
	case SourceEnv:
		return "env"
	case SourceFlag:
		return "flag"
	default:
		return "default"
	}
}

// FileScope records where the loaded config file lives. A user-global file
// silently affects every project, which matters for the sandbox home
// advisory.
type FileScope int

const (
	ScopeNone FileScope = iota
	ScopeProject
	ScopeUser
)

// Settings holds the flat claude-jail configuration.
type Settings struct {
	Profile      string   `yaml:"profile"`
	Network      bool     `yaml:"network"`
	SandboxHome  string   `yaml:"sandbox_home"`
	SandboxName  string   `yaml:"sandbox_name"`
	CopyConfig   bool     `yaml:"copy_config"`
	GitReadonly  bool     `yaml:"git_readonly"`
	ROPaths      []string `yaml:"ro_paths"`
	RWPaths      []string `yaml:"rw_paths"`
	BlockedPaths []string `yaml:"blocked_paths"`
	Term         string   `yaml:"term"`
	Lang         string   `yaml:"lang"`
	Shell        string   `yaml:"shell"`
}

// DefaultSettings returns the built-in defaults, the lowest precedence tier.
func DefaultSettings() Settings {
	return Settings{
		Profile:     "dev",
		Network:     true,
		SandboxName: ".claude-sandbox",
		CopyConfig:  true,
		Term:        "xterm-256color",
		Lang:        "en_US.UTF-8",
		Shell:       "/bin/bash",
	}
}

// Keys lists the settings keys in display order, used by `claude-jail config`.
var Keys = []string{
	"profile",
	"network",
	"sandbox_home",
	"sandbox_name",
	"copy_config",
	"git_readonly",
	"ro_paths",
	"rw_paths",
	"blocked_paths",
	"term",
	"lang",
	"shell",
}

// Value renders the setting for key as a display string. Path lists use the
// same colon separation as their environment variables.
func (r *Resolved) Value(key string) string {
	switch key {
	case "profile":
		return r.Profile
	case "network":
		return strconv.FormatBool(r.Network)
	case "sandbox_home":
		return r.SandboxHome
	case "sandbox_name":
		return r.SandboxName
	case "copy_config":
		return strconv.FormatBool(r.CopyConfig)
	case "git_readonly":
		return strconv.FormatBool(r.GitReadonly)
	case "ro_paths":
		return strings.Join(r.ROPaths, ":")
	case "rw_paths":
		return strings.Join(r.RWPaths, ":")
	case "blocked_paths":
		return strings.Join(r.BlockedPaths, ":")
	case "term":
		return r.Term
	case "lang":
		return r.Lang
	case "shell":
		return r.Shell
	}
	return ""
}

// Resolved is a fully resolved configuration plus per-key provenance.
type Resolved struct {
	Settings

	// Sources maps each settings key to the tier that supplied its value.
	Sources map[string]Source

	// File is the config file that was loaded, empty when none was found.
	File      string
	FileScope FileScope
}

// ConfigHome returns the claude-jail config directory: CLAUDE_JAIL_CONFIG_HOME
// if set, else $XDG_CONFIG_HOME/claude-jail, else ~/.config/claude-jail.
func ConfigHome() string {
	if home := os.Getenv("CLAUDE_JAIL_CONFIG_HOME"); home != "" {
		return home
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "claude-jail")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "claude-jail")
	}
	return filepath.Join(home, ".config", "claude-jail")
}
