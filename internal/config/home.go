package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mbarlow12/claude-jail/internal/ui"
)

// ErrUnsafeSandboxRoot is returned when the computed sandbox root would sit
// directly on a system directory.
var ErrUnsafeSandboxRoot = errors.New("unsafe sandbox root")

// deniedRoots are the exact paths refused as sandbox roots. Subdirectories
// beneath them are fine; binding the sandbox home over one of these literal
// paths would shadow the system.
var deniedRoots = map[string]bool{
	"/":      true,
	"/etc":   true,
	"/home":  true,
	"/root":  true,
	"/usr":   true,
	"/bin":   true,
	"/sbin":  true,
	"/lib":   true,
	"/lib64": true,
	"/var":   true,
	"/tmp":   true,
	"/boot":  true,
	"/dev":   true,
	"/proc":  true,
	"/sys":   true,
}

// SandboxHomePath computes the sandbox root as parent/name. An absolute
// sandbox_home value is the parent directory with sandbox_name as the leaf;
// a relative value is itself the leaf under the project directory. This
// preserves the meaning of the older single-field scheme where sandbox_home
// was just a directory name.
func (r *Resolved) SandboxHomePath(projectDir string) (string, error) {
	parent := projectDir
	leaf := r.SandboxName
	if r.SandboxHome != "" {
		if filepath.IsAbs(r.SandboxHome) {
			parent = r.SandboxHome
		} else {
			leaf = r.SandboxHome
		}
	}

	root := filepath.Clean(filepath.Join(parent, leaf))
	if deniedRoots[root] {
		return "", fmt.Errorf("%w: %s", ErrUnsafeSandboxRoot, root)
	}

	if r.Sources["sandbox_home"] == SourceFile && r.FileScope == ScopeUser {
		ui.Logger.Warn("sandbox_home comes from a user-global config and affects every project",
			"file", r.File, "sandbox_home", r.SandboxHome)
	}

	return root, nil
}
