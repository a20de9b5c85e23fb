package sandbox

import (
	"github.com/mbarlow12/claude-jail/internal/bwrap"
	"github.com/mbarlow12/claude-jail/internal/gitrepo"
	"github.com/mbarlow12/claude-jail/internal/ui"
)

// Compile runs one full compilation pass: profile application, network
// policy, extra path lists, blocked paths, and the git worktree
// contribution. The builder is reset first, so a caller can reuse one
// builder across passes. Any error returned here is fatal — the engine is
// never invoked with a partially built directive set.
func Compile(b *bwrap.Builder, reg *Registry, ctx Context) error {
	b.Reset()

	if err := reg.Apply(ctx.Settings.Profile, b, ctx); err != nil {
		return err
	}

	if !ctx.Settings.Network {
		b.Unshare("net")
	}

	// Extra paths are optional: a missing one is skipped with a warning,
	// unlike the mandatory project and sandbox home binds.
	for _, p := range ctx.Settings.ROPaths {
		if err := b.ROBind(p); err != nil {
			ui.Logger.Warn("skipping extra read-only path", "path", p, "error", err)
		}
	}
	for _, p := range ctx.Settings.RWPaths {
		if err := b.Bind(p); err != nil {
			ui.Logger.Warn("skipping extra read-write path", "path", p, "error", err)
		}
	}

	// Blocked paths get an empty tmpfs mounted over them.
	for _, p := range ctx.Settings.BlockedPaths {
		b.AddTmpfs(p)
	}

	return gitrepo.ContributeBindings(b, ctx.ProjectDir, ctx.Settings.GitReadonly, ctx.GitRootOverride)
}
