// Package gitrepo resolves git repository topology for a project directory.
//
// A linked worktree keeps its real repository metadata in the primary
// clone's .git/worktrees/<name> directory, reached through two levels of
// indirection: the worktree's .git file points at the worktree-private
// metadata directory, whose commondir file points (often relatively) at the
// metadata directory shared by all worktrees. That shared directory must be
// bound into the sandbox or git inside it cannot function.
package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mbarlow12/claude-jail/internal/bwrap"
	"github.com/mbarlow12/claude-jail/internal/ui"
)

var (
	// ErrNotARepository means the directory has no .git marker at all.
	ErrNotARepository = errors.New("not a git repository")

	// ErrInvalidGitRoot means a manual root override does not contain a
	// primary repository marker.
	ErrInvalidGitRoot = errors.New("invalid git root override")
)

// Info describes the resolved repository topology for one directory.
// Computed fresh per invocation; worktrees can be added and removed between
// runs, so nothing here is ever cached.
type Info struct {
	// Root is the main repository root: the directory itself for a primary
	// clone, the primary clone's root for a linked worktree.
	Root string

	// IsWorktree reports whether the queried directory is a linked worktree
	// rather than the primary clone.
	IsWorktree bool
}

// Resolve determines the main repository root for dir.
func Resolve(dir string) (*Info, error) {
	marker := filepath.Join(dir, ".git")
	fi, err := os.Stat(marker)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotARepository, dir)
	}
	if fi.IsDir() {
		// Primary clone: the repository data already lives inside dir.
		return &Info{Root: dir}, nil
	}
	root, err := followWorktree(dir, marker)
	if err != nil {
		return nil, err
	}
	return &Info{Root: root, IsWorktree: true}, nil
}

// followWorktree chases the gitdir and commondir indirections of a linked
// worktree and returns the main repository root.
func followWorktree(dir, marker string) (string, error) {
	data, err := os.ReadFile(marker)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", marker, err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(data)), "\n")
	gitdir, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", fmt.Errorf("%s: missing gitdir pointer", marker)
	}
	gitdir = strings.TrimSpace(gitdir)
	if !filepath.IsAbs(gitdir) {
		gitdir = filepath.Join(dir, gitdir)
	}

	commonFile := filepath.Join(gitdir, "commondir")
	cdata, err := os.ReadFile(commonFile)
	if err != nil {
		return "", fmt.Errorf("incomplete worktree metadata, no commondir under %s: %w", gitdir, err)
	}
	common := strings.TrimSpace(string(cdata))
	if !filepath.IsAbs(common) {
		common = filepath.Join(gitdir, common)
	}
	return filepath.Dir(filepath.Clean(common)), nil
}

// ContributeBindings binds the main repository metadata into the sandbox
// when the project directory is a linked worktree. A primary clone or a
// non-repository contributes nothing. When override is non-empty it is used
// as the main root directly, but must itself contain a .git directory.
func ContributeBindings(b *bwrap.Builder, projectDir string, readonly bool, override string) error {
	var root string
	if override != "" {
		fi, err := os.Stat(filepath.Join(override, ".git"))
		if err != nil || !fi.IsDir() {
			return fmt.Errorf("%w: %s contains no .git directory", ErrInvalidGitRoot, override)
		}
		root = override
	} else {
		info, err := Resolve(projectDir)
		if errors.Is(err, ErrNotARepository) {
			ui.Logger.Debug("no git repository, skipping metadata binding", "dir", projectDir)
			return nil
		}
		if err != nil {
			return err
		}
		if !info.IsWorktree {
			return nil
		}
		root = info.Root
	}

	if inside(projectDir, root) {
		// The metadata is covered by the project bind already; binding it
		// again would be redundant or cyclical.
		return nil
	}

	gitDir := filepath.Join(root, ".git")
	if readonly {
		return b.ROBind(gitDir)
	}
	return b.Bind(gitDir)
}

// inside reports whether child is projectDir itself or lies beneath it.
func inside(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
