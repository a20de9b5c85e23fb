package bwrap

// Mode is the access mode of a bind mount.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// Directive is a single bubblewrap instruction. Each variant knows how to
// render itself as command-line arguments.
type Directive interface {
	args() []string
}

// Namespace shares or unshares one kernel namespace.
type Namespace struct {
	Share bool
	Name  string
}

func (d Namespace) args() []string {
	if d.Share {
		return []string{"--share-" + d.Name}
	}
	return []string{"--unshare-" + d.Name}
}

// Bind exposes a host path inside the sandbox.
type Bind struct {
	Src  string
	Dst  string
	Mode Mode
}

func (d Bind) args() []string {
	flag := "--ro-bind"
	if d.Mode == ReadWrite {
		flag = "--bind"
	}
	return []string{flag, d.Src, d.Dst}
}

// Tmpfs mounts a fresh tmpfs at a sandbox path.
type Tmpfs struct {
	Path string
}

func (d Tmpfs) args() []string { return []string{"--tmpfs", d.Path} }

// Symlink creates a symlink inside the sandbox.
type Symlink struct {
	Target string
	Link   string
}

func (d Symlink) args() []string { return []string{"--symlink", d.Target, d.Link} }

// Dev mounts a minimal /dev.
type Dev struct {
	Path string
}

func (d Dev) args() []string { return []string{"--dev", d.Path} }

// Proc mounts /proc.
type Proc struct {
	Path string
}

func (d Proc) args() []string { return []string{"--proc", d.Path} }

// Env sets an environment variable inside the sandbox.
type Env struct {
	Name  string
	Value string
}

func (d Env) args() []string { return []string{"--setenv", d.Name, d.Value} }

// Dir creates a directory inside the sandbox. The builder queues these for
// every missing ancestor of a bind destination, since bwrap requires parents
// to exist before it can create a mount point under them.
type Dir struct {
	Path string
}

func (d Dir) args() []string { return []string{"--dir", d.Path} }

// Chdir sets the working directory of the sandboxed process.
type Chdir struct {
	Path string
}

func (d Chdir) args() []string { return []string{"--chdir", d.Path} }
