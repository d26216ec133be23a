package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/playback"
	"github.com/stretchr/testify/assert"
)

type fakeControls struct {
	calls  []string
	paused bool
}

func (f *fakeControls) Next()     { f.calls = append(f.calls, "next") }
func (f *fakeControls) Previous() { f.calls = append(f.calls, "previous") }
func (f *fakeControls) Pause()    { f.calls = append(f.calls, "pause"); f.paused = true }
func (f *fakeControls) Resume()   { f.calls = append(f.calls, "resume"); f.paused = false }
func (f *fakeControls) Close()    { f.calls = append(f.calls, "close") }

func (f *fakeControls) Snapshot() playback.Session {
	if f.paused {
		return playback.Session{State: playback.StatePaused}
	}
	return playback.Session{State: playback.StatePlaying}
}

func TestHandleKey(t *testing.T) {
	c := &fakeControls{}
	for _, k := range []byte("np  x") {
		assert.True(t, handleKey(c, k))
	}
	assert.False(t, handleKey(c, 'q'))
	assert.Equal(t, []string{"next", "previous", "pause", "resume", "close"}, c.calls)
}

func TestStatusLine(t *testing.T) {
	items := []domain.StoryItem{
		{ID: "a", SubjectKey: "0x1234567890abcdef", MediaKind: domain.MediaKindImage, CreatedAt: time.Now(), DisplayAttrs: domain.DisplayAttrs{Text: "gm"}},
		{ID: "b", SubjectKey: "0x1234567890abcdef", MediaKind: domain.MediaKindVideo, CreatedAt: time.Now()},
	}
	session, _ := playback.NewSession(items, "42", playback.DefaultConfig())

	line := statusLine(session)
	assert.True(t, strings.HasPrefix(line, "░░░░░░░░░░ ░░░░░░░░░░"), line)
	assert.Contains(t, line, "1/2 0x1234...cdef image [loading]  gm")
}

func TestScreen_SkipsIdenticalFrames(t *testing.T) {
	var out bytes.Buffer
	s := newScreen(&out)
	session, _ := playback.NewSession(nil, "42", playback.DefaultConfig())

	s.render(session)
	n := out.Len()
	s.render(session)
	assert.Equal(t, n, out.Len())

	s.finish(session)
	assert.Contains(t, out.String(), "no active stories")
}
