//go:build !linux

package foreground

import "context"

func execRunner(context.Context, string, ...string) ([]byte, error) {
	return nil, ErrXPropUnavailable
}
