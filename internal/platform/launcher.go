// Package platform opens URLs with the operating system's handlers or an external program.
package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

const (
	OSDarwin  = "darwin"
	OSWindows = "windows"
	OSLinux   = "linux"
)

var (
	ErrUnsupportedOS = errors.New("unsupported operating system")
	ErrNoProgram     = errors.New("no program given")
)

// StartFunc starts a program without waiting for it to exit.
type StartFunc = func(name string, args ...string) error

type Launcher struct {
	goos  string
	start StartFunc
	log   *zap.SugaredLogger
}

func NewLauncher() *Launcher {
	return newLauncher(runtime.GOOS, startProcess)
}

func newLauncher(goos string, start StartFunc) *Launcher {
	return &Launcher{goos: goos, start: start, log: zap.S().Named("platform")}
}

// Open hands the URL to whatever the desktop has registered for it.
func (l *Launcher) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, args, err := openCommand(l.goos)
	if err != nil {
		return err
	}
	return l.run(name, append(args, url)...)
}

// OpenWith starts program with the URL as its argument.
func (l *Launcher) OpenWith(ctx context.Context, program string, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(program) == "" {
		return ErrNoProgram
	}
	return l.run(program, url)
}

func (l *Launcher) run(name string, args ...string) error {
	l.log.Debugw("starting", "program", name, "args", args)
	if err := l.start(name, args...); err != nil {
		return fmt.Errorf("failed to start %v: %w", name, err)
	}
	return nil
}

func openCommand(goos string) (string, []string, error) {
	switch goos {
	case OSDarwin:
		return "open", nil, nil
	case OSWindows:
		return "rundll32", []string{"url.dll,FileProtocolHandler"}, nil
	case OSLinux, "freebsd", "openbsd", "netbsd":
		return "xdg-open", nil, nil
	default:
		return "", nil, fmt.Errorf("%w: %v", ErrUnsupportedOS, goos)
	}
}

func startProcess(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the process whenever it exits
	go func() { _ = cmd.Wait() }()
	return nil
}
