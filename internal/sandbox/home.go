package sandbox

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mbarlow12/claude-jail/internal/ui"
)

// EnsureDirs creates the standard directory skeleton under the sandbox home.
func EnsureDirs(home string) error {
	dirs := []string{
		filepath.Join(home, ".config"),
		filepath.Join(home, ".cache"),
		filepath.Join(home, ".local", "share"),
		filepath.Join(home, ".claude"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating sandbox directory: %w", err)
		}
	}
	return nil
}

// CopyClaudeConfig seeds the sandbox home with the host's ~/.claude directory
// and ~/.claude.json on first run. A .copied marker makes the copy
// idempotent: repeated invocations never overwrite sandbox-side state.
func CopyClaudeConfig(home string) error {
	hostHome, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	hostClaude := filepath.Join(hostHome, ".claude")
	sandboxClaude := filepath.Join(home, ".claude")
	marker := filepath.Join(sandboxClaude, ".copied")

	if fi, err := os.Stat(hostClaude); err == nil && fi.IsDir() {
		if _, err := os.Stat(marker); err != nil {
			if err := copyTree(hostClaude, sandboxClaude); err != nil {
				return fmt.Errorf("copying claude config: %w", err)
			}
			if err := os.WriteFile(marker, nil, 0o644); err != nil {
				return fmt.Errorf("writing copy marker: %w", err)
			}
		}
	}

	hostJSON := filepath.Join(hostHome, ".claude.json")
	sandboxJSON := filepath.Join(home, ".claude.json")
	if fileExists(hostJSON) && !fileExists(sandboxJSON) {
		if err := copyFile(hostJSON, sandboxJSON); err != nil {
			return fmt.Errorf("copying claude.json: %w", err)
		}
	}
	return nil
}

// copyTree copies src's entries into dst without overwriting anything that
// already exists. rsync does the work when available.
func copyTree(src, dst string) error {
	if _, err := exec.LookPath("rsync"); err == nil {
		cmd := exec.Command("rsync", "-a", "--ignore-existing", src+"/", dst+"/")
		if out, err := cmd.CombinedOutput(); err != nil {
			ui.Logger.Warn("rsync failed, falling back to manual copy", "error", err, "output", string(out))
		} else {
			return nil
		}
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		if _, err := os.Lstat(to); err == nil {
			continue
		}
		if entry.IsDir() {
			if err := copyDir(from, to); err != nil {
				return err
			}
		} else if entry.Type().IsRegular() {
			if err := copyFile(from, to); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
