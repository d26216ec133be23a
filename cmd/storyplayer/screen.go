package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/orgball2608/fary-stories/internal/playback"
	"github.com/orgball2608/fary-stories/pkg/formatter"
)

const barWidth = 10

// screen redraws a single status line, skipping identical frames.
type screen struct {
	out  io.Writer
	mu   sync.Mutex
	last string
}

func newScreen(out io.Writer) *screen {
	return &screen{out: out}
}

func (s *screen) render(session playback.Session) {
	line := statusLine(session)

	s.mu.Lock()
	defer s.mu.Unlock()
	if line == s.last {
		return
	}
	s.last = line
	fmt.Fprintf(s.out, "\r\033[K%s", line)
}

func (s *screen) finish(session playback.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r\033[K%s\r\n", endLine(session))
}

func statusLine(s playback.Session) string {
	var b strings.Builder
	b.WriteString(formatter.ProgressBars(s.Bars(), barWidth))

	item, ok := s.Current()
	if !ok {
		return b.String()
	}

	fmt.Fprintf(&b, "  %d/%d %s %s", s.Index+1, len(s.Items), formatter.ShortAddress(item.SubjectKey), item.MediaKind)
	switch {
	case s.IsPaused():
		b.WriteString(" [paused]")
	case s.State == playback.StateLoading:
		b.WriteString(" [loading]")
	}
	if item.Text != "" {
		b.WriteString("  ")
		b.WriteString(item.Text)
	}
	return b.String()
}

func endLine(s playback.Session) string {
	switch s.EndReason {
	case playback.EndNoContent:
		return "no active stories"
	case playback.EndCompleted:
		return fmt.Sprintf("watched %d stories", len(s.Items))
	default:
		return "closed"
	}
}
