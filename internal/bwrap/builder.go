// Package bwrap builds bubblewrap command lines from high-level directives.
//
// A Builder accumulates directives into four ordered buckets — namespace
// flags, ancestor-directory creations, binds/mounts/symlinks, environment
// settings — and emits them in that fixed order regardless of insertion
// order. Destinations are deduplicated: binding the same path twice is a
// no-op, and each ancestor directory is only ever created once.
package bwrap

import (
	"fmt"
	"os"
	"path/filepath"
)

// Builder accumulates bubblewrap directives for one compilation pass.
// It is not safe for concurrent use and must be Reset between passes.
type Builder struct {
	ns     []Directive
	pre    []Directive
	mounts []Directive
	env    []Directive
	seen   map[string]struct{}
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{seen: make(map[string]struct{})}
}

// Reset empties every bucket and the dedup set. Reusing a Builder for a
// second compilation pass without resetting produces stale dedup decisions.
func (b *Builder) Reset() {
	b.ns = nil
	b.pre = nil
	b.mounts = nil
	b.env = nil
	b.seen = make(map[string]struct{})
}

// ensureAncestors queues a Dir directive for every ancestor of dst that has
// not been queued yet, outermost first.
func (b *Builder) ensureAncestors(dst string) {
	parent := filepath.Dir(filepath.Clean(dst))
	if parent == "/" || parent == "." {
		return
	}
	var chain []string
	for p := parent; p != "/" && p != "."; p = filepath.Dir(p) {
		chain = append(chain, p)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		key := "dir:" + chain[i]
		if _, ok := b.seen[key]; ok {
			continue
		}
		b.pre = append(b.pre, Dir{Path: chain[i]})
		b.seen[key] = struct{}{}
	}
}

func (b *Builder) addBind(src, dst string, mode Mode) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("bind source %s: %w", src, err)
	}
	if dst == "" {
		dst = src
	}
	dst = filepath.Clean(dst)
	key := "bind:" + dst
	if _, ok := b.seen[key]; ok {
		return nil
	}
	// Bind the symlink-free source so the mount survives host symlink churn.
	real, err := filepath.EvalSymlinks(src)
	if err != nil {
		real = src
	}
	b.ensureAncestors(dst)
	b.mounts = append(b.mounts, Bind{Src: real, Dst: dst, Mode: mode})
	b.seen[key] = struct{}{}
	return nil
}

// ROBind adds a read-only bind of src at the same path inside the sandbox.
// It returns an error (and adds nothing) when src does not exist.
func (b *Builder) ROBind(src string) error {
	return b.addBind(src, "", ReadOnly)
}

// ROBindTo adds a read-only bind of src at dst.
func (b *Builder) ROBindTo(src, dst string) error {
	return b.addBind(src, dst, ReadOnly)
}

// Bind adds a read-write bind of src at the same path inside the sandbox.
func (b *Builder) Bind(src string) error {
	return b.addBind(src, "", ReadWrite)
}

// BindTo adds a read-write bind of src at dst.
func (b *Builder) BindTo(src, dst string) error {
	return b.addBind(src, dst, ReadWrite)
}

// AddTmpfs mounts a tmpfs at path.
func (b *Builder) AddTmpfs(path string) {
	path = filepath.Clean(path)
	b.ensureAncestors(path)
	b.mounts = append(b.mounts, Tmpfs{Path: path})
}

// AddSymlink creates a symlink at link pointing to target. The link path is
// marked as present so no directory is created over it later.
func (b *Builder) AddSymlink(target, link string) {
	link = filepath.Clean(link)
	key := "dir:" + link
	if _, ok := b.seen[key]; ok {
		return
	}
	b.ensureAncestors(link)
	b.mounts = append(b.mounts, Symlink{Target: target, Link: link})
	b.seen[key] = struct{}{}
}

// AddDev mounts a minimal /dev at path.
func (b *Builder) AddDev(path string) {
	b.mounts = append(b.mounts, Dev{Path: path})
}

// AddProc mounts /proc at path.
func (b *Builder) AddProc(path string) {
	b.mounts = append(b.mounts, Proc{Path: path})
}

// AddChdir sets the working directory inside the sandbox.
func (b *Builder) AddChdir(path string) {
	b.mounts = append(b.mounts, Chdir{Path: path})
}

// Setenv sets an environment variable. Calls are never deduplicated: bwrap
// applies --setenv flags in order, so a later call for the same name wins.
func (b *Builder) Setenv(name, value string) {
	b.env = append(b.env, Env{Name: name, Value: value})
}

// unshareable is the set of namespace names bwrap can unshare.
var unshareable = map[string]bool{
	"user":   true,
	"pid":    true,
	"net":    true,
	"ipc":    true,
	"uts":    true,
	"cgroup": true,
}

// Unshare appends one unshare directive per recognized namespace name.
// Unrecognized names are ignored so configs written for a newer bwrap keep
// working on older binaries.
func (b *Builder) Unshare(names ...string) {
	for _, name := range names {
		if !unshareable[name] {
			continue
		}
		b.ns = append(b.ns, Namespace{Name: name})
	}
}

// Share appends one share directive per recognized namespace name. Only the
// network namespace can be shared back.
func (b *Builder) Share(names ...string) {
	for _, name := range names {
		if name != "net" {
			continue
		}
		b.ns = append(b.ns, Namespace{Share: true, Name: name})
	}
}

// Directives returns the accumulated directives in emission order:
// namespaces, directory creations, mounts, environment.
func (b *Builder) Directives() []Directive {
	out := make([]Directive, 0, len(b.ns)+len(b.pre)+len(b.mounts)+len(b.env))
	out = append(out, b.ns...)
	out = append(out, b.pre...)
	out = append(out, b.mounts...)
	out = append(out, b.env...)
	return out
}

// Args renders the accumulated directives as bwrap flags.
func (b *Builder) Args() []string {
	var out []string
	for _, d := range b.Directives() {
		out = append(out, d.args()...)
	}
	return out
}

// Command returns the full argument vector: the bwrap invocation, the
// accumulated flags, a separator, and the command to run inside the sandbox.
func (b *Builder) Command(inner ...string) []string {
	cmd := []string{"bwrap", "--die-with-parent", "--new-session"}
	cmd = append(cmd, b.Args()...)
	cmd = append(cmd, "--")
	cmd = append(cmd, inner...)
	return cmd
}
