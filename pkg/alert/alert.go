package alert

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/sirupsen/logrus"
)

type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

const alertTimeout = 3 * time.Second

// Desktop raises OS notifications by shelling out to notify-send on Linux or
// osascript on macOS. Without either tool the permission is denied.
type Desktop struct {
	mu         sync.Mutex
	permission Permission
	command    string

	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

func NewDesktop() *Desktop {
	return &Desktop{
		permission: PermissionDefault,
		lookPath:   exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (d *Desktop) Permission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission
}

// RequestPermission resolves the permission once. The answer is sticky.
func (d *Desktop) RequestPermission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.permission != PermissionDefault {
		return d.permission
	}

	tool := "notify-send"
	if runtime.GOOS == "darwin" {
		tool = "osascript"
	}
	path, err := d.lookPath(tool)
	if err != nil {
		d.permission = PermissionDenied
		logrus.Debugf("[ALERT] %s not available, desktop alerts disabled", tool)
		return d.permission
	}
	d.command = path
	d.permission = PermissionGranted
	return d.permission
}

// Alert shows title and message. It asks for permission on first use.
func (d *Desktop) Alert(title, message string) error {
	if d.RequestPermission() != PermissionGranted {
		return pkgError.PermissionError("desktop notifications are not permitted")
	}

	d.mu.Lock()
	command := d.command
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()

	var args []string
	if strings.HasSuffix(command, "osascript") {
		args = []string{"-e", fmt.Sprintf("display notification %q with title %q", message, title)}
	} else {
		args = []string{"--app-name=az-collab", title, message}
	}
	if err := d.run(ctx, command, args...); err != nil {
		return fmt.Errorf("desktop alert failed: %w", err)
	}
	return nil
}

// Noop never shows anything. It is used when alerts are disabled.
type Noop struct{}

func (Noop) Permission() Permission        { return PermissionDenied }
func (Noop) RequestPermission() Permission { return PermissionDenied }
func (Noop) Alert(string, string) error {
	return pkgError.PermissionError("desktop notifications are disabled")
}
