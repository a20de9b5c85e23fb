// Package sandbox turns a named isolation profile and resolved configuration
// into a populated bwrap.Builder, ready to be emitted as an argument vector.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mbarlow12/claude-jail/internal/bwrap"
	"github.com/mbarlow12/claude-jail/internal/config"
)

// Context is what a profile gets to work with: the project directory, the
// sandbox home, and the resolved settings.
type Context struct {
	ProjectDir string
	Home       string
	Settings   *config.Resolved

	// GitRootOverride, when set, bypasses worktree resolution and uses this
	// path as the main repository root.
	GitRootOverride string
}

// Profile populates a builder for one sandbox flavor. Profiles are stateless
// and re-entrant: applying the same profile to a freshly reset builder always
// yields the same directives.
type Profile func(b *bwrap.Builder, ctx Context) error

// ErrUnknownProfile is returned when a requested profile is not registered.
var ErrUnknownProfile = errors.New("unknown profile")

// Registry maps profile names to implementations.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry returns a registry preloaded with the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]Profile)}
	r.Register("dev", DevProfile)
	r.Register("minimal", MinimalProfile)
	r.Register("paranoid", ParanoidProfile)
	return r
}

// Register adds a profile, overwriting any existing one under the same name.
func (r *Registry) Register(name string, p Profile) {
	r.profiles[name] = p
}

// Names returns all registered profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply invokes the named profile against b, which the caller must have
// reset beforehand.
func (r *Registry) Apply(name string, b *bwrap.Builder, ctx Context) error {
	p, ok := r.profiles[name]
	if !ok {
		return fmt.Errorf("%w: %q (available: %s)", ErrUnknownProfile, name, strings.Join(r.Names(), ", "))
	}
	return p(b, ctx)
}

// DevProfile is the default profile: full host toolchain access with the
// real home directory swapped out for the sandbox home.
func DevProfile(b *bwrap.Builder, ctx Context) error {
	b.Unshare("user", "pid", "uts", "ipc", "cgroup")

	b.SystemBase()
	b.SystemDNS()
	b.SystemSSL()
	b.SystemUsers()
	if fi, err := os.Stat("/etc/alternatives"); err == nil && fi.IsDir() {
		_ = b.ROBind("/etc/alternatives")
	}

	b.AddProc("/proc")
	b.AddDev("/dev")
	b.AddTmpfs("/tmp")
	b.AddTmpfs("/run")

	b.BindPathDirs()
	bindToolchains(b)

	if err := bindWorkArea(b, ctx); err != nil {
		return err
	}

	baseEnv(b, ctx)
	toolchainEnv(b)
	passthroughEnv(b)

	b.AddChdir(ctx.ProjectDir)
	return nil
}

// MinimalProfile exposes the base system and PATH but no per-tool homes and
// no host environment passthrough.
func MinimalProfile(b *bwrap.Builder, ctx Context) error {
	b.Unshare("user", "pid", "uts", "ipc", "cgroup")

	b.SystemBase()
	b.SystemDNS()
	b.SystemSSL()
	b.SystemUsers()

	b.AddProc("/proc")
	b.AddDev("/dev")
	b.AddTmpfs("/tmp")

	b.BindPathDirs()

	if err := bindWorkArea(b, ctx); err != nil {
		return err
	}

	baseEnv(b, ctx)
	b.AddChdir(ctx.ProjectDir)
	return nil
}

// ParanoidProfile exposes only the base system and the project. No resolver
// or certificate data goes in; pair it with network=false for offline work.
func ParanoidProfile(b *bwrap.Builder, ctx Context) error {
	b.Unshare("user", "pid", "uts", "ipc", "cgroup")

	b.SystemBase()
	b.SystemUsers()

	b.AddProc("/proc")
	b.AddDev("/dev")
	b.AddTmpfs("/tmp")

	if err := bindWorkArea(b, ctx); err != nil {
		return err
	}

	b.Setenv("HOME", ctx.Home)
	b.Setenv("PATH", os.Getenv("PATH"))
	b.Setenv("TERM", ctx.Settings.Term)

	b.AddChdir(ctx.ProjectDir)
	return nil
}

// bindWorkArea binds the project directory and sandbox home read-write.
// These are the two mandatory paths: a miss here is fatal, not skippable.
func bindWorkArea(b *bwrap.Builder, ctx Context) error {
	if err := b.Bind(ctx.ProjectDir); err != nil {
		return fmt.Errorf("project directory: %w", err)
	}
	if err := b.Bind(ctx.Home); err != nil {
		return fmt.Errorf("sandbox home: %w", err)
	}
	return nil
}

// toolchainDirs are the per-tool homes the dev profile exposes read-only,
// relative to the host home directory.
var toolchainDirs = []string{
	".local/share/mise",
	".config/mise",
	".cargo",
	".rustup",
	".cache/uv",
	".local/share/uv",
	".pyenv",
	".nvm",
	".npm",
	".volta",
	".bun",
	"go",
	".local/bin",
}

func bindToolchains(b *bwrap.Builder) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	for _, rel := range toolchainDirs {
		dir := filepath.Join(home, rel)
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			_ = b.ROBind(dir)
		}
	}
}

// baseEnv sets the environment every profile needs: the sandbox home as
// HOME, the XDG trio beneath it, and the basics from configuration.
func baseEnv(b *bwrap.Builder, ctx Context) {
	b.Setenv("HOME", ctx.Home)
	b.Setenv("XDG_CONFIG_HOME", filepath.Join(ctx.Home, ".config"))
	b.Setenv("XDG_DATA_HOME", filepath.Join(ctx.Home, ".local", "share"))
	b.Setenv("XDG_CACHE_HOME", filepath.Join(ctx.Home, ".cache"))
	b.Setenv("PATH", os.Getenv("PATH"))
	b.Setenv("TERM", ctx.Settings.Term)
	b.Setenv("LANG", ctx.Settings.Lang)
	b.Setenv("SHELL", ctx.Settings.Shell)
}

// toolchainEnv points the tool managers at their host homes, matching the
// read-only binds from bindToolchains.
func toolchainEnv(b *bwrap.Builder) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	b.Setenv("MISE_DATA_DIR", filepath.Join(home, ".local", "share", "mise"))
	b.Setenv("MISE_CONFIG_DIR", filepath.Join(home, ".config", "mise"))
	b.Setenv("CARGO_HOME", filepath.Join(home, ".cargo"))
	b.Setenv("RUSTUP_HOME", filepath.Join(home, ".rustup"))
}

// passthroughVars are host variables forwarded into the sandbox when set.
var passthroughVars = []string{
	"GIT_AUTHOR_NAME",
	"GIT_AUTHOR_EMAIL",
	"GIT_COMMITTER_NAME",
	"GIT_COMMITTER_EMAIL",
	"http_proxy",
	"https_proxy",
	"HTTP_PROXY",
	"HTTPS_PROXY",
	"no_proxy",
	"NO_PROXY",
	"ANTHROPIC_API_KEY",
}

func passthroughEnv(b *bwrap.Builder) {
	for _, name := range passthroughVars {
		if value := os.Getenv(name); value != "" {
			b.Setenv(name, value)
		}
	}
}
