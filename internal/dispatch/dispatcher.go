// Package dispatch runs user-triggered commands one at a time on a single goroutine.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/alanbriolat/video-leecher/generic"
	"github.com/alanbriolat/video-leecher/internal/lpc"
	"github.com/alanbriolat/video-leecher/internal/sync_"
)

var (
	ErrClosed    = errors.New("dispatcher closed")
	ErrReentrant = errors.New("command submitted from inside a running command")
)

// Func is the body of a command. The context it receives must be passed on to anything that might submit further
// commands, so that re-entry is detected instead of deadlocking.
type Func = func(ctx context.Context) error

type request struct {
	ctx  context.Context
	name string
	f    Func
}

type execCommand = lpc.Command[request, generic.Void]

type runningKey struct{}

// A Dispatcher executes commands strictly one after another, in submission order.
type Dispatcher struct {
	log      *zap.SugaredLogger
	commands chan *execCommand
	closing  sync_.Event
	done     chan struct{}
}

func New() *Dispatcher {
	d := &Dispatcher{
		log:      zap.S().Named("dispatch"),
		commands: make(chan *execCommand),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Exec submits a command and waits for it to finish, returning the command's own error. Waiting for the command to
// start can be abandoned by cancelling ctx; once started, a command always runs to completion.
func (d *Dispatcher) Exec(ctx context.Context, name string, f Func) error {
	if owner, ok := ctx.Value(runningKey{}).(*Dispatcher); ok && owner == d {
		return fmt.Errorf("%v: %w", name, ErrReentrant)
	}
	cmd := (*execCommand)(nil).New(request{ctx: ctx, name: name, f: f})
	select {
	case d.commands <- cmd:
	case <-d.closing.Wait():
		return fmt.Errorf("%v: %w", name, ErrClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
	_, err := cmd.Wait()
	return err
}

// Close stops accepting commands and waits for the running command, if any, to finish.
func (d *Dispatcher) Close() {
	d.closing.Set()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.closing.Wait():
			return
		case cmd := <-d.commands:
			d.exec(cmd)
		}
	}
}

func (d *Dispatcher) exec(cmd *execCommand) {
	req := cmd.Arg()
	log := d.log.With("command", req.name)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("command panicked: %v", r)
			_ = cmd.RespondError(fmt.Errorf("%v: panic: %v", req.name, r))
		}
	}()
	log.Debug("running command")
	if err := req.f(context.WithValue(req.ctx, runningKey{}, d)); err != nil {
		log.Warnf("command failed: %v", err)
		_ = cmd.RespondError(err)
		return
	}
	_ = cmd.Respond(generic.NewVoid())
}
