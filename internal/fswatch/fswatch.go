// Package fswatch posts file system changes onto an event bus.
//
// Each fsnotify operation becomes one fs.Change event with the changed
// path, its directory and the operation. Subscribers filter with
// templates, for example fs.Change(op=write) or fs.Change(dir=/etc).
package fswatch

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/logging"
)

// Errors returned by the watcher.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
)

// Op is the enum of file operations carried by change events.
var Op = event.NewEnum("Op", "create", "write", "remove", "rename", "chmod")

var ops = []struct {
	op   fsnotify.Op
	name string
}{
	{fsnotify.Create, "create"},
	{fsnotify.Write, "write"},
	{fsnotify.Remove, "remove"},
	{fsnotify.Rename, "rename"},
	{fsnotify.Chmod, "chmod"},
}

// Declare registers the fs.Change event type in reg.
func Declare(reg *event.Registry) (*event.Type, error) {
	return reg.Group("fs").Declare("Change",
		event.F("path", event.String),
		event.F("dir", event.String),
		event.F("op", event.EnumOf(Op)),
	)
}

// Poster receives the change events. *bus.Bus implements it; wrap other
// posting functions with PosterFunc.
type Poster interface {
	Post(e *event.Event)
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(e *event.Event)

// Post calls f(e).
func (f PosterFunc) Post(e *event.Event) { f(e) }

// Watcher translates fsnotify events into change events.
type Watcher struct {
	fsw *fsnotify.Watcher
	typ *event.Type
	out Poster
	log zerolog.Logger

	mu     sync.Mutex
	paths  map[string]bool
	closed bool
	done   chan struct{}

	posted atomic.Uint64
	errors atomic.Uint64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) {
		w.log = l
	}
}

// New starts a watcher posting events of typ, which must be the type
// returned by Declare, to out.
func New(typ *event.Type, out Poster, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:   fsw,
		typ:   typ,
		out:   out,
		log:   logging.Component("fswatch"),
		paths: make(map[string]bool),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.loop()
	return w, nil
}

// Add starts watching path. Directories are watched non-recursively.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[abs] {
		return nil
	}
	if err := w.fsw.Add(abs); err != nil {
		return err
	}
	w.paths[abs] = true
	w.log.Debug().Str("path", abs).Msg("watching")
	return nil
}

// Posted returns the number of change events posted.
func (w *Watcher) Posted() uint64 { return w.posted.Load() }

// Errors returns the number of watch errors seen.
func (w *Watcher) Errors() uint64 { return w.errors.Load() }

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.errors.Add(1)
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// handle posts one change event per operation bit set in ev.
func (w *Watcher) handle(ev fsnotify.Event) {
	for _, o := range ops {
		if !ev.Has(o.op) {
			continue
		}
		e := w.typ.New().
			MustSet("path", ev.Name).
			MustSet("dir", filepath.Dir(ev.Name)).
			MustSet("op", o.name)
		w.out.Post(e)
		w.posted.Add(1)
	}
}
