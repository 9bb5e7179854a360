package party

import (
	"context"
	"strings"
	"sync"
	"time"

	"konterku/engine/internal/domain"
)

// DefaultDebounce is the pause after the last keystroke before a lookup
// request is issued.
const DefaultDebounce = 350 * time.Millisecond

// Lookup fetches candidate counterparties for a source ("member" or
// "downline"). The backend may return the bulk list; substring filtering
// happens client-side via Filter.
type Lookup interface {
	SearchParties(ctx context.Context, source string, query string) ([]domain.PartySelection, error)
}

// Filter keeps parties whose name or phone contains query,
// case-insensitively. An empty query matches nothing.
func Filter(parties []domain.PartySelection, query string) []domain.PartySelection {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	out := make([]domain.PartySelection, 0, len(parties))
	for _, p := range parties {
		if strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(strings.ToLower(p.Phone), needle) {
			out = append(out, p)
		}
	}
	return out
}

// Searcher debounces party lookups. Every keystroke restarts the delay; a
// superseded search is discarded even if its request eventually completes.
// An empty query short-circuits to "no results" without issuing a request.
type Searcher struct {
	mu       sync.Mutex
	lookup   Lookup
	source   string
	debounce time.Duration
	timer    *time.Timer
	gen      uint64
	stopped  bool

	onResults func(query string, parties []domain.PartySelection)
	onError   func(query string, err error)
}

func NewSearcher(lookup Lookup, source string, debounce time.Duration, onResults func(string, []domain.PartySelection), onError func(string, error)) *Searcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Searcher{
		lookup:    lookup,
		source:    source,
		debounce:  debounce,
		onResults: onResults,
		onError:   onError,
	}
}

// SetQuery records the latest keystroke state and restarts the debounce
// timer. The eventual request runs with ctx; callers pass the dialog's
// lifetime context.
func (s *Searcher) SetQuery(ctx context.Context, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		// No request for an empty field; report the cleared state directly.
		if s.onResults != nil {
			go s.onResults("", nil)
		}
		return
	}

	s.timer = time.AfterFunc(s.debounce, func() {
		s.run(ctx, gen, trimmed)
	})
}

// Stop cancels any pending search. Results that arrive afterwards are dropped.
func (s *Searcher) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Searcher) run(ctx context.Context, gen uint64, query string) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	parties, err := s.lookup.SearchParties(ctx, s.source, query)

	s.mu.Lock()
	superseded := s.stopped || gen != s.gen
	s.mu.Unlock()
	if superseded {
		return
	}

	if err != nil {
		if s.onError != nil {
			s.onError(query, err)
		}
		return
	}
	if s.onResults != nil {
		s.onResults(query, Filter(parties, query))
	}
}
