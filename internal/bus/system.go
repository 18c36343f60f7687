package bus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/eventbus/internal/logging"
)

// MainBus is the name of the distinguished default bus.
const MainBus = "main"

// System is a named collection of buses.
type System struct {
	opts []Option
	log  zerolog.Logger

	mu    sync.Mutex
	buses map[string]*Bus
}

// NewSystem creates an empty system. opts apply to every bus it installs,
// before the options given to Install.
func NewSystem(opts ...Option) *System {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &System{
		opts:  opts,
		log:   cfg.log.With().Str("component", "system").Logger(),
		buses: make(map[string]*Bus),
	}
}

var (
	defaultOnce   sync.Once
	defaultSystem *System
)

// Default returns the process-wide system, creating it with the main bus
// installed on first use.
func Default() *System {
	defaultOnce.Do(func() {
		defaultSystem = NewSystem(WithLogger(logging.Component("bus")))
		defaultSystem.Install(MainBus)
	})
	return defaultSystem
}

// Install creates a bus named name. An existing bus of that name is
// closed and replaced, with a warning.
func (s *System) Install(name string, opts ...Option) *Bus {
	all := make([]Option, 0, len(s.opts)+len(opts))
	all = append(all, s.opts...)
	all = append(all, opts...)
	b := New(name, all...)

	s.mu.Lock()
	old := s.buses[name]
	s.buses[name] = b
	s.mu.Unlock()

	if old != nil {
		s.log.Warn().Str("bus", name).Msg("bus already installed, replacing")
		if err := old.Close(context.Background()); err != nil {
			s.log.Error().Err(err).Str("bus", name).Msg("closing replaced bus")
		}
	}
	s.log.Debug().Str("bus", name).Msg("bus installed")
	return b
}

// Uninstall closes and removes the bus named name.
func (s *System) Uninstall(ctx context.Context, name string) error {
	s.mu.Lock()
	b, ok := s.buses[name]
	delete(s.buses, name)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("uninstall %q: %w", name, ErrBusNotInstalled)
	}
	s.log.Debug().Str("bus", name).Msg("bus uninstalled")
	return b.Close(ctx)
}

// Get returns the bus named name.
func (s *System) Get(name string) (*Bus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buses[name]
	return b, ok
}

// Main returns the main bus. If it is not installed it is installed now.
func (s *System) Main() *Bus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buses[MainBus]; ok {
		return b
	}
	s.log.Warn().Msg("main bus not installed, installing")
	b := New(MainBus, s.opts...)
	s.buses[MainBus] = b
	return b
}

// Names returns the installed bus names, sorted.
func (s *System) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.buses))
	for name := range s.buses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close uninstalls and closes every bus.
func (s *System) Close(ctx context.Context) error {
	s.mu.Lock()
	buses := s.buses
	s.buses = make(map[string]*Bus)
	s.mu.Unlock()

	var errs []error
	for _, b := range buses {
		if err := b.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
