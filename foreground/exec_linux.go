//go:build linux

package foreground

import (
	"context"
	"os/exec"
)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
