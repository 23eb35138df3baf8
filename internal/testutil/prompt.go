package testutil

import (
	"context"
	"sync"

	"mdnotes/internal/notes"
)

// StaticConfirmer answers every prompt the same way and records the prompts.
type StaticConfirmer struct {
	mu      sync.Mutex
	answer  bool
	err     error
	prompts []notes.Prompt
}

var _ notes.Confirmer = (*StaticConfirmer)(nil)

func NewStaticConfirmer(answer bool) *StaticConfirmer {
	return &StaticConfirmer{answer: answer}
}

// FailWith makes Confirm return err.
func (c *StaticConfirmer) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *StaticConfirmer) Confirm(ctx context.Context, p notes.Prompt) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, p)
	if c.err != nil {
		return false, c.err
	}
	return c.answer, nil
}

// Prompts returns the prompts shown so far.
func (c *StaticConfirmer) Prompts() []notes.Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notes.Prompt(nil), c.prompts...)
}

// RecordingSignals is a notes.SignalChannel that counts requests and lets a
// test deliver them by hand.
type RecordingSignals struct {
	mu      sync.Mutex
	sent    int
	err     error
	handler func()
}

var _ notes.SignalChannel = (*RecordingSignals)(nil)

func NewRecordingSignals() *RecordingSignals {
	return &RecordingSignals{}
}

// FailWith makes SendSyncRequest return err.
func (s *RecordingSignals) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *RecordingSignals) SendSyncRequest(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent++
	return nil
}

func (s *RecordingSignals) OnSyncRequest(fn func()) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.handler = nil
	}, nil
}

// Sent returns the number of successful SendSyncRequest calls.
func (s *RecordingSignals) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Deliver invokes the registered handler, if any.
func (s *RecordingSignals) Deliver() bool {
	s.mu.Lock()
	fn := s.handler
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}
