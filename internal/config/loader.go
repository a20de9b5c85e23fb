package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mbarlow12/claude-jail/internal/ui"
)

const envPrefix = "CLAUDE_JAIL_"

// Overrides carries explicit invocation-time settings, the highest
// precedence tier. Nil pointer fields mean "not set on the command line".
type Overrides struct {
	Profile *string
	Network *bool
	ROPaths []string
	RWPaths []string

	// ConfigFile skips discovery and loads only this file. It must exist.
	ConfigFile string
}

// fileSettings mirrors Settings with pointer fields so the loader can tell
// which keys a config file actually set.
type fileSettings struct {
	Profile      *string  `yaml:"profile"`
	Network      *bool    `yaml:"network"`
	SandboxHome  *string  `yaml:"sandbox_home"`
	SandboxName  *string  `yaml:"sandbox_name"`
	CopyConfig   *bool    `yaml:"copy_config"`
	GitReadonly  *bool    `yaml:"git_readonly"`
	ROPaths      []string `yaml:"ro_paths"`
	RWPaths      []string `yaml:"rw_paths"`
	BlockedPaths []string `yaml:"blocked_paths"`
	Term         *string  `yaml:"term"`
	Lang         *string  `yaml:"lang"`
	Shell        *string  `yaml:"shell"`
}

type candidate struct {
	path  string
	scope FileScope
}

// candidates returns the config file search list in discovery order. At most
// one of these files is ever loaded.
func candidates(projectDir string) []candidate {
	var out []candidate
	out = append(out, candidate{filepath.Join(projectDir, ".claude-jail.yaml"), ScopeProject})
	out = append(out, candidate{filepath.Join(ConfigHome(), "config.yaml"), ScopeUser})
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, candidate{filepath.Join(home, ".claude-jail.yaml"), ScopeUser})
	}
	return out
}

// Resolve builds the final configuration for one invocation. The only fatal
// condition is an explicitly requested config file that does not exist; a
// file that exists but fails to parse is skipped with a warning and the
// resolver falls through to defaults for the file tier.
func Resolve(projectDir string, ov Overrides) (*Resolved, error) {
	r := &Resolved{
		Settings: DefaultSettings(),
		Sources:  make(map[string]Source),
	}
	for _, key := range Keys {
		r.Sources[key] = SourceDefault
	}

	if err := r.applyFile(projectDir, ov.ConfigFile); err != nil {
		return nil, err
	}
	r.applyEnv()
	r.applyOverrides(ov)
	return r, nil
}

// applyFile loads the first existing candidate file. An explicit override
// (flag or CLAUDE_JAIL_CONFIG) replaces discovery entirely and must exist.
// Discovery stops at the first existing path: a parse failure does not fall
// through to later candidates.
func (r *Resolved) applyFile(projectDir, explicit string) error {
	if explicit == "" {
		explicit = os.Getenv(envPrefix + "CONFIG")
	}

	var found *candidate
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return fmt.Errorf("config file not found: %s", explicit)
		}
		found = &candidate{explicit, ScopeProject}
	} else {
		for _, c := range candidates(projectDir) {
			if _, err := os.Stat(c.path); err == nil {
				found = &c
				break
			}
		}
	}
	if found == nil {
		return nil
	}

	data, err := os.ReadFile(found.path)
	if err != nil {
		ui.Logger.Warn("cannot read config file, using defaults", "path", found.path, "error", err)
		return nil
	}
	var fs fileSettings
	if err := yaml.Unmarshal(data, &fs); err != nil {
		ui.Logger.Warn("cannot parse config file, using defaults", "path", found.path, "error", err)
		return nil
	}

	r.File = found.path
	r.FileScope = found.scope

	if fs.Profile != nil {
		r.Profile = *fs.Profile
		r.Sources["profile"] = SourceFile
	}
	if fs.Network != nil {
		r.Network = *fs.Network
		r.Sources["network"] = SourceFile
	}
	if fs.SandboxHome != nil {
		r.SandboxHome = *fs.SandboxHome
		r.Sources["sandbox_home"] = SourceFile
	}
	if fs.SandboxName != nil {
		r.SandboxName = *fs.SandboxName
		r.Sources["sandbox_name"] = SourceFile
	}
	if fs.CopyConfig != nil {
		r.CopyConfig = *fs.CopyConfig
		r.Sources["copy_config"] = SourceFile
	}
	if fs.GitReadonly != nil {
		r.GitReadonly = *fs.GitReadonly
		r.Sources["git_readonly"] = SourceFile
	}
	if fs.ROPaths != nil {
		r.ROPaths = fs.ROPaths
		r.Sources["ro_paths"] = SourceFile
	}
	if fs.RWPaths != nil {
		r.RWPaths = fs.RWPaths
		r.Sources["rw_paths"] = SourceFile
	}
	if fs.BlockedPaths != nil {
		r.BlockedPaths = fs.BlockedPaths
		r.Sources["blocked_paths"] = SourceFile
	}
	if fs.Term != nil {
		r.Term = *fs.Term
		r.Sources["term"] = SourceFile
	}
	if fs.Lang != nil {
		r.Lang = *fs.Lang
		r.Sources["lang"] = SourceFile
	}
	if fs.Shell != nil {
		r.Shell = *fs.Shell
		r.Sources["shell"] = SourceFile
	}
	return nil
}

// applyEnv overlays CLAUDE_JAIL_* environment variables. Path lists are
// colon-separated and replace any file-tier value wholesale.
func (r *Resolved) applyEnv() {
	r.envString("PROFILE", "profile", &r.Profile)
	r.envBool("NETWORK", "network", &r.Network)
	r.envString("SANDBOX_HOME", "sandbox_home", &r.SandboxHome)
	r.envString("SANDBOX_NAME", "sandbox_name", &r.SandboxName)
	r.envBool("COPY_CONFIG", "copy_config", &r.CopyConfig)
	r.envBool("GIT_READONLY", "git_readonly", &r.GitReadonly)
	r.envList("RO_PATHS", "ro_paths", &r.ROPaths)
	r.envList("RW_PATHS", "rw_paths", &r.RWPaths)
	r.envList("BLOCKED_PATHS", "blocked_paths", &r.BlockedPaths)
	r.envString("TERM", "term", &r.Term)
	r.envString("LANG", "lang", &r.Lang)
	r.envString("SHELL", "shell", &r.Shell)
}

func (r *Resolved) envString(suffix, key string, dst *string) {
	if v, ok := os.LookupEnv(envPrefix + suffix); ok {
		*dst = v
		r.Sources[key] = SourceEnv
	}
}

func (r *Resolved) envBool(suffix, key string, dst *bool) {
	v, ok := os.LookupEnv(envPrefix + suffix)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		ui.Logger.Warn("ignoring malformed boolean", "var", envPrefix+suffix, "value", v)
		return
	}
	*dst = parsed
	r.Sources[key] = SourceEnv
}

func (r *Resolved) envList(suffix, key string, dst *[]string) {
	v, ok := os.LookupEnv(envPrefix + suffix)
	if !ok {
		return
	}
	var paths []string
	for _, p := range filepath.SplitList(v) {
		if p != "" {
			paths = append(paths, p)
		}
	}
	*dst = paths
	r.Sources[key] = SourceEnv
}

// applyOverrides overlays explicit invocation-time values, the top tier.
func (r *Resolved) applyOverrides(ov Overrides) {
	if ov.Profile != nil {
		r.Profile = *ov.Profile
		r.Sources["profile"] = SourceFlag
	}
	if ov.Network != nil {
		r.Network = *ov.Network
		r.Sources["network"] = SourceFlag
	}
	if ov.ROPaths != nil {
		r.ROPaths = ov.ROPaths
		r.Sources["ro_paths"] = SourceFlag
	}
	if ov.RWPaths != nil {
		r.RWPaths = ov.RWPaths
		r.Sources["rw_paths"] = SourceFlag
	}
}
