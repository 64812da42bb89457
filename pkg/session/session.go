// Package session owns one editable scene. A Session runs a single event
// loop; every graph mutation, history commit, asset result and deferred
// scan executes on that loop, so none of them needs further locking.
package session

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/chazu/arbor/pkg/assets"
	"github.com/chazu/arbor/pkg/batch"
	"github.com/chazu/arbor/pkg/config"
	"github.com/chazu/arbor/pkg/editor"
	"github.com/chazu/arbor/pkg/events"
	"github.com/chazu/arbor/pkg/graph"
	"github.com/chazu/arbor/pkg/history"
	"github.com/chazu/arbor/pkg/interp"
	"github.com/chazu/arbor/pkg/kernel"
	"github.com/chazu/arbor/pkg/kernel/sdfx"
	"github.com/chazu/arbor/pkg/modelreg"
	"github.com/chazu/arbor/pkg/tessellate"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("session: stopped")

const queueSize = 256

// Option configures a Session.
type Option func(*Session)

// WithConfig replaces the default settings.
func WithConfig(c config.Config) Option {
	return func(s *Session) { s.cfg = c }
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithLoader replaces the file loader rooted at the configured asset
// directory.
func WithLoader(l assets.Loader) Option {
	return func(s *Session) { s.loader = l }
}

// WithKernel replaces the sdfx geometry kernel.
func WithKernel(k kernel.Kernel) Option {
	return func(s *Session) { s.kernel = k }
}

// WithLinkOpener replaces the browser used for link pointer events.
func WithLinkOpener(fn interp.LinkOpener) Option {
	return func(s *Session) { s.openLink = fn }
}

// Session wires the editor, history, model registry, batcher and
// interpreter around one scene.
type Session struct {
	ID uuid.UUID

	cfg      config.Config
	log      *slog.Logger
	loader   assets.Loader
	kernel   kernel.Kernel
	openLink interp.LinkOpener

	editor  *editor.Controller
	history *history.Manager
	models  *modelreg.Registry
	scanner *modelreg.Scanner
	bus     *events.Bus
	interp  *interp.Interpreter

	queue chan func()
	done  chan struct{}
}

// New builds a session around g and starts loading the models it
// references.
func New(g *graph.Graph, opts ...Option) *Session {
	s := &Session{
		ID:    uuid.New(),
		cfg:   config.Default(),
		log:   slog.Default(),
		queue: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("session", s.ID.String()[:8])
	if s.loader == nil {
		s.loader = assets.NewFileLoader(os.DirFS(s.cfg.Assets.Root), s.log)
	}
	if s.kernel == nil {
		s.kernel = sdfx.New(s.cfg.Render.MeshCells)
	}

	s.history = history.New(history.Snapshot{Graph: g},
		history.WithLimit(s.cfg.History.Limit),
		history.WithDebounce(s.cfg.History.Debounce.Duration),
		history.WithScheduler(s.Post),
		history.WithLogger(s.log),
	)
	s.editor = editor.New(g,
		editor.WithHistory(s.history),
		editor.WithDropPolicy(s.cfg.DropPolicy()),
		editor.WithLogger(s.log),
	)
	s.models = modelreg.New(s.loader, modelreg.WithLogger(s.log))
	s.scanner = modelreg.NewScanner(s.models, s.cfg.Assets.ScanDelay.Duration,
		modelreg.WithScanScheduler(s.Post),
		modelreg.WithScanLogger(s.log),
	)
	s.bus = events.NewBus()
	s.interp = interp.New(interp.Context{
		Models:    s.models,
		Batcher:   batch.NewRegistry(batch.WithMinInstances(s.cfg.Render.MinInstances), batch.WithLogger(s.log)),
		Mesher:    tessellate.NewMesher(s.kernel),
		Bus:       s.bus,
		OpenLink:  s.openLink,
		Selection: s.editor,
		Log:       s.log,
	})

	s.editor.OnChange(s.scanner.Notify)
	s.editor.OnSelect(func(prev, next graph.NodeID) {
		s.bus.EmitSelection(events.SelectionChange{Previous: prev, Current: next})
	})
	s.models.ScanAndResolve(g)
	return s
}

// Editor returns the editor. Call its methods only from the loop.
func (s *Session) Editor() *editor.Controller { return s.editor }

// Models returns the model registry.
func (s *Session) Models() *modelreg.Registry { return s.models }

// Bus returns the event bus.
func (s *Session) Bus() *events.Bus { return s.bus }

// Config returns the session settings.
func (s *Session) Config() config.Config { return s.cfg }

// Run executes posted closures and applies asset results until ctx is
// done. Only one Run may be active.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	if s.cfg.Assets.Watch {
		go func() {
			if err := s.models.Watch(ctx, s.cfg.Assets.Root); err != nil {
				s.log.Warn("asset watch stopped", "err", err)
			}
		}()
	}
	s.log.Info("session started", "count", s.editor.Graph().Len())
	for {
		select {
		case fn := <-s.queue:
			fn()
		case res := <-s.models.Results():
			s.models.Apply(res)
		case <-ctx.Done():
			s.history.Flush()
			return ctx.Err()
		}
	}
}

// Post enqueues fn to run on the loop and returns immediately.
func (s *Session) Post(fn func()) {
	select {
	case s.queue <- fn:
		return
	default:
	}
	go func() {
		select {
		case s.queue <- fn:
		case <-s.done:
		}
	}()
}

// Do runs fn on the loop and waits for it to finish.
func (s *Session) Do(ctx context.Context, fn func(ed *editor.Controller)) error {
	finished := make(chan struct{})
	s.Post(func() {
		defer close(finished)
		fn(s.editor)
	})
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Render interprets the current graph in mode. Call it from the loop, or
// before Run starts.
func (s *Session) Render(mode interp.Mode) *interp.Frame {
	s.interp.SetMode(mode)
	return s.interp.Render(s.editor.Graph())
}

// PointerDown forwards a press to the interpreter. Call it from the loop.
func (s *Session) PointerDown(mode interp.Mode, id graph.NodeID) interp.PointerResult {
	s.interp.SetMode(mode)
	return s.interp.PointerDown(s.editor.Graph(), id)
}

// WaitForModels applies load results until none is in flight. It is for
// use without a running loop, such as one-shot rendering.
func (s *Session) WaitForModels(ctx context.Context) error {
	return s.models.Wait(ctx)
}
