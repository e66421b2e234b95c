// Package console implements the interactive parts of the application on a terminal.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/manifoldco/promptui"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/async"
	"github.com/alanbriolat/video-leecher/internal/reconcile"
)

type Queue interface {
	Enqueue(ctx context.Context, job *video_leecher.DownloadJob) error
}

// A promptFunc shows label and reads one line of input.
type promptFunc func(label string) (string, error)

// Console prompts on one reader and writes to one writer. It is safe for concurrent use, but prompts are answered in
// the order they are asked.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	prompt promptFunc
	queue  Queue
	log    *zap.SugaredLogger
}

// New creates a Console. queue receives jobs confirmed from ShowDownload, and may be nil if that isn't used.
func New(in io.Reader, out io.Writer, queue Queue) *Console {
	return &Console{
		out:    out,
		prompt: terminalPrompt(in, out),
		queue:  queue,
		log:    zap.S().Named("console"),
	}
}

func terminalPrompt(in io.Reader, out io.Writer) promptFunc {
	stdin := io.NopCloser(in)
	stdout := nopWriteCloser{out}
	return func(label string) (string, error) {
		p := promptui.Prompt{
			Label:  label,
			Stdin:  stdin,
			Stdout: stdout,
		}
		return p.Run()
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

var answers = map[string]reconcile.Answer{
	"y":      reconcile.AnswerYes,
	"yes":    reconcile.AnswerYes,
	"n":      reconcile.AnswerNo,
	"no":     reconcile.AnswerNo,
	"c":      reconcile.AnswerCancel,
	"cancel": reconcile.AnswerCancel,
}

// Ask repeats the question until it gets a recognised answer. End of input counts as Cancel.
func (c *Console) Ask(ctx context.Context, caption string, message string) (reconcile.Answer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printMessage(caption, message)
	for {
		line, err := c.readLine(ctx, "[y]es / [n]o / [c]ancel")
		if errors.Is(err, promptui.ErrEOF) {
			return reconcile.AnswerCancel, nil
		} else if err != nil {
			return reconcile.AnswerNone, err
		}
		if answer, ok := answers[strings.ToLower(line)]; ok {
			c.log.Debugw("answered", "caption", caption, "answer", answer)
			return answer, nil
		}
	}
}

func (c *Console) ShowNotice(ctx context.Context, caption string, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printMessage(caption, message)
	if _, err := c.readLine(ctx, "Press Enter to continue"); err != nil && !errors.Is(err, promptui.ErrEOF) {
		return err
	}
	return nil
}

func (c *Console) ShowError(_ context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "Error: %v\n", err)
}

func (c *Console) Notify(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%v\n", message)
}

// ShowDownload describes a download and queues it if the user agrees.
func (c *Console) ShowDownload(ctx context.Context, job *video_leecher.DownloadJob) error {
	message := fmt.Sprintf("%v\n  Channel: %v\n  Quality: %v\n  Save as: %v\nAdd this download to the queue?",
		job.Video.Title, job.Video.Channel, job.Quality, job.FullPath())
	answer, err := c.Ask(ctx, reconcile.CaptionDownload, message)
	if err != nil {
		return err
	}
	if answer != reconcile.AnswerYes {
		return nil
	}
	if c.queue == nil {
		return errors.New("no download queue")
	}
	if err := c.queue.Enqueue(ctx, job); err != nil {
		return err
	}
	c.Notify("Download added")
	return nil
}

func (c *Console) ShowSearch(_ context.Context) error {
	c.Notify("Use the search command to find videos by --channel, --url or --id")
	return nil
}

func (c *Console) printMessage(caption string, message string) {
	fmt.Fprintf(c.out, "%v\n%v\n", caption, message)
}

// readLine prompts for the next line, giving up when ctx is done. Interrupting the prompt cancels it.
func (c *Console) readLine(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	select {
	case result := <-async.RunResult(func() (string, error) { return c.prompt(label) }):
		if errors.Is(result.Error, promptui.ErrInterrupt) {
			return "", fmt.Errorf("%v: %w", label, context.Canceled)
		} else if result.IsErr() {
			return "", result.Error
		}
		return strings.TrimSpace(result.Value), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
