package notifier

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// ErrDesktopUnsupported is returned on platforms without a notification command.
var ErrDesktopUnsupported = errors.New("desktop notifications not supported on this platform")

// DesktopNotifier shows local popups through the platform's notification command.
type DesktopNotifier struct {
	AppName string
	Timeout time.Duration
	GOOS    string
}

// NewDesktopNotifier creates a notifier for the running platform.
func NewDesktopNotifier(appName string) *DesktopNotifier {
	return &DesktopNotifier{AppName: appName, Timeout: 10 * time.Second, GOOS: runtime.GOOS}
}

// Notify shows title and body. Failures are returned, never retried.
func (d *DesktopNotifier) Notify(ctx context.Context, title, body string) error {
	name, args, err := desktopCommand(d.GOOS, d.AppName, title, body, d.Timeout)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func desktopCommand(goos, app, title, body string, timeout time.Duration) (string, []string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return "notify-send", []string{
			"-a", app,
			"-t", strconv.FormatInt(timeout.Milliseconds(), 10),
			title, body,
		}, nil
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s subtitle %s",
			strconv.Quote(body), strconv.Quote(app), strconv.Quote(title))
		return "osascript", []string{"-e", script}, nil
	default:
		return "", nil, ErrDesktopUnsupported
	}
}
