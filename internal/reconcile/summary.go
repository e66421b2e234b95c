package reconcile

import (
	"fmt"
	"strings"
)

// Summary counts what a bulk download did. Overwritten downloads are also counted in Added.
type Summary struct {
	Added       int
	Skipped     int
	Overwritten int
}

func (s Summary) Message() string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "%d Downloads added", s.Added)
	if s.Skipped > 0 {
		fmt.Fprintf(&b, ", %d existing files have been skipped", s.Skipped)
	}
	if s.Overwritten > 0 {
		fmt.Fprintf(&b, ", %d existing files have been overwritten", s.Overwritten)
	}
	return b.String()
}

// state is the bookkeeping of one bulk download, discarded when it finishes.
type state struct {
	Summary
	collisions  int
	overrideAll bool
	skipAll     bool
}
