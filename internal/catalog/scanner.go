package catalog

import (
	"strings"
	"sync"
	"time"

	"konterku/engine/internal/domain"
)

// DefaultQuietPeriod is how long the scanner waits after the last keystroke
// before treating the buffer as a complete barcode. Hardware scanners emit
// their characters in a fast burst, then go silent.
const DefaultQuietPeriod = 300 * time.Millisecond

// Scanner buffers barcode keystrokes and resolves the accumulated code
// against a snapshot once a quiet period elapses. Every new keystroke
// restarts the timer, so resolution never fires mid-burst; a superseded
// timer is discarded rather than left to race.
type Scanner struct {
	mu       sync.Mutex
	snapshot *Snapshot
	quiet    time.Duration
	buf      strings.Builder
	timer    *time.Timer
	gen      uint64
	stopped  bool

	onResolved func(domain.CatalogItem)
	onNotFound func(code string)
}

func NewScanner(snapshot *Snapshot, quiet time.Duration, onResolved func(domain.CatalogItem), onNotFound func(code string)) *Scanner {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Scanner{
		snapshot:   snapshot,
		quiet:      quiet,
		onResolved: onResolved,
		onNotFound: onNotFound,
	}
}

// Append adds scanner input to the buffer and restarts the quiet timer.
func (s *Scanner) Append(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.buf.WriteString(chunk)
	s.gen++
	gen := s.gen

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.quiet, func() {
		s.fire(gen)
	})
}

// Flush resolves the buffered code immediately, without waiting for the quiet
// period. Used when the input field reports an explicit terminator.
func (s *Scanner) Flush() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.fire(gen)
}

// Stop discards any pending resolution. Late timer callbacks become no-ops.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.buf.Reset()
}

func (s *Scanner) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	code := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	s.timer = nil
	s.mu.Unlock()

	if code == "" {
		return
	}
	if item, ok := s.snapshot.ResolveByBarcode(code); ok {
		if s.onResolved != nil {
			s.onResolved(item)
		}
		return
	}
	if s.onNotFound != nil {
		s.onNotFound(code)
	}
}
