package modelreg

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/chazu/arbor/pkg/graph"
)

// DefaultScanDelay is how long the scanner waits after the last change
// before scanning.
const DefaultScanDelay = 100 * time.Millisecond

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScanScheduler makes deferred scans run through post, typically the
// owning event loop.
func WithScanScheduler(post func(func())) ScannerOption {
	return func(s *Scanner) { s.post = post }
}

// WithScanLogger sets the logger.
func WithScanLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) { s.log = l }
}

// Scanner defers ScanAndResolve after graph changes so a burst of edits
// yields a single scan of the latest graph.
type Scanner struct {
	reg       *Registry
	debounced func(func())
	post      func(func())
	log       *slog.Logger

	mu     sync.Mutex
	latest *graph.Graph
	scans  int
}

// NewScanner returns a scanner feeding reg. A non-positive delay selects
// DefaultScanDelay.
func NewScanner(reg *Registry, delay time.Duration, opts ...ScannerOption) *Scanner {
	if delay <= 0 {
		delay = DefaultScanDelay
	}
	s := &Scanner{reg: reg, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.debounced = debounce.New(delay)
	return s
}

// Notify records g as the latest graph and schedules a scan.
func (s *Scanner) Notify(g *graph.Graph) {
	s.mu.Lock()
	s.latest = g
	s.mu.Unlock()
	s.debounced(s.fire)
}

func (s *Scanner) fire() {
	if s.post != nil {
		s.post(func() { s.Flush() })
		return
	}
	s.Flush()
}

// Flush scans the latest notified graph now, if one is waiting, and
// returns the number of loads started.
func (s *Scanner) Flush() int {
	s.mu.Lock()
	g := s.latest
	s.latest = nil
	if g != nil {
		s.scans++
	}
	s.mu.Unlock()
	if g == nil {
		return 0
	}
	return s.reg.ScanAndResolve(g)
}

// Scans returns how many scans have run.
func (s *Scanner) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}
