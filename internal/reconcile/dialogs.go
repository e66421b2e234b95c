package reconcile

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnknownAnswer = errors.New("unknown prompt answer")
)

// An Answer is the outcome of a modal prompt.
type Answer int

const (
	// AnswerNone means the prompt was dismissed without choosing.
	AnswerNone Answer = iota
	AnswerOK
	AnswerYes
	AnswerNo
	AnswerCancel
)

func (a Answer) String() string {
	switch a {
	case AnswerNone:
		return "None"
	case AnswerOK:
		return "OK"
	case AnswerYes:
		return "Yes"
	case AnswerNo:
		return "No"
	case AnswerCancel:
		return "Cancel"
	default:
		return fmt.Sprintf("Answer(%d)", int(a))
	}
}

// Dialogs are the blocking prompts shown to the user.
type Dialogs interface {
	// Ask shows a Yes/No/Cancel question and waits for the answer.
	Ask(ctx context.Context, caption string, message string) (Answer, error)
	// ShowNotice shows a message with a single OK button and waits for it to be dismissed.
	ShowNotice(ctx context.Context, caption string, message string) error
	// ShowError reports an error to the user.
	ShowError(ctx context.Context, err error)
}

// A Notifier shows short, non-blocking messages.
type Notifier interface {
	Notify(message string)
}

const (
	CaptionDownload = "Download"
	CaptionSubOnly  = "SUB HYPE!"

	MessageSubOnly      = "This video is sub-only! Third party software can no longer download such videos, sorry :("
	messageSubOnlyTitle = "This video (%v) is sub-only! Third party software can no longer download such videos, sorry :("
	messageMultiple     = "It seems there are multiple files that already exist.\n\n" +
		"Press Cancel if you want to get a question for each existing file.\n\n" +
		"Press Yes if you want to override all existing files.\n\n" +
		"Press No if you want to skip all existing files"
	messageExisting = "The file:\n%v\nalready exists. Do you want to overwrite it?\n\n" +
		"If you press Cancel the rest of the downloads will not be added."
)

// SubOnlyMessage is the notice shown for a sub-only video during a bulk download.
func SubOnlyMessage(title string) string {
	return fmt.Sprintf(messageSubOnlyTitle, title)
}
