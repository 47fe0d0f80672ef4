package foreground

import (
	"context"
	"errors"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

// ErrXPropUnavailable is returned when the X11 query cannot run on this system.
var ErrXPropUnavailable = errors.New("foreground: xprop unavailable")

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// XProp reports the class of the focused X11 window. It has no event history, so Events
// always returns an empty slice and the engine falls back to Current on every tick.
type XProp struct {
	run     Runner
	timeout time.Duration
}

var _ goGuard.EventSource = (*XProp)(nil)

// NewXProp returns an xprop source. A nil run uses the system xprop binary.
func NewXProp(run Runner) *XProp {
	if run == nil {
		run = execRunner
	}
	return &XProp{run: run, timeout: 2 * time.Second}
}

func (x *XProp) Events(ctx context.Context, _, _ time.Time) ([]goGuard.ForegroundEvent, error) {
	return nil, ctx.Err()
}

func (x *XProp) Current(ctx context.Context) (goGuard.AppID, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	out, err := x.run(ctx, "xprop", "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		return "", false, errors.Join(ErrXPropUnavailable, err)
	}
	windowID, ok := parseActiveWindow(string(out))
	if !ok {
		return "", false, nil
	}

	out, err = x.run(ctx, "xprop", "-id", windowID, "WM_CLASS")
	if err != nil {
		return "", false, errors.Join(ErrXPropUnavailable, err)
	}
	class, ok := parseWMClass(string(out))
	return class, ok, nil
}
