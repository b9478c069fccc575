// Package trigger turns polled button state into trigger events.
package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/opencode-ai/cadence/internal/logging"
	"github.com/rs/zerolog"
)

// Poller errors.
var (
	ErrPollerAlreadyRunning = errors.New("poller already running")
	ErrPollerNotRunning     = errors.New("poller not running")
)

// Handler receives one call per trigger occurrence.
type Handler interface {
	OnTriggerEvent()
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func()

// OnTriggerEvent calls f.
func (f HandlerFunc) OnTriggerEvent() {
	f()
}

// Source reports whether a named button is currently held down.
type Source interface {
	Pressed(button string) (bool, error)
}

// Config contains poller configuration.
type Config struct {
	// Button is the name of the polled button.
	// Default: "Fire1".
	Button string

	// PollInterval is how often the button is sampled.
	// Default: 20 milliseconds.
	PollInterval time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Button:       "Fire1",
		PollInterval: 20 * time.Millisecond,
	}
}

// Stats contains poller statistics.
type Stats struct {
	Running       bool
	Polls         int64
	Triggers      int64
	Errors        int64
	LastTriggerAt *time.Time
}

// Poller samples a Source once per tick and notifies its Handler when the
// button goes from released to pressed.
type Poller struct {
	config  Config
	source  Source
	handler Handler
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	pollMu  sync.Mutex
	pressed bool

	statsMu sync.RWMutex
	stats   Stats
}

// New creates a Poller.
func New(config Config, source Source, handler Handler) *Poller {
	if config.Button == "" {
		config.Button = DefaultConfig().Button
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}

	return &Poller{
		config:  config,
		source:  source,
		handler: handler,
		logger:  logging.Component("trigger").With().Str("button", config.Button).Logger(),
	}
}

// Start begins polling in the background.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPollerAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.statsMu.Lock()
	p.stats.Running = true
	p.statsMu.Unlock()

	p.logger.Debug().Dur("poll_interval", p.config.PollInterval).Msg("poller starting")

	p.wg.Add(1)
	go p.runLoop(ctx)
	return nil
}

// Stop halts polling and waits for the loop to exit.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPollerNotRunning
	}
	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()

	p.statsMu.Lock()
	p.stats.Running = false
	p.statsMu.Unlock()

	p.logger.Debug().Msg("poller stopped")
	return nil
}

// Poll samples the source once. It reports whether a trigger fired.
func (p *Poller) Poll() bool {
	p.pollMu.Lock()
	down, err := p.source.Pressed(p.config.Button)
	if err != nil {
		p.pollMu.Unlock()
		p.logger.Warn().Err(err).Msg("poll failed")
		p.statsMu.Lock()
		p.stats.Polls++
		p.stats.Errors++
		p.statsMu.Unlock()
		return false
	}
	fired := down && !p.pressed
	p.pressed = down
	p.pollMu.Unlock()

	now := time.Now().UTC()
	p.statsMu.Lock()
	p.stats.Polls++
	if fired {
		p.stats.Triggers++
		p.stats.LastTriggerAt = &now
	}
	p.statsMu.Unlock()

	if fired {
		p.logger.Debug().Msg("trigger fired")
		p.handler.OnTriggerEvent()
	}
	return fired
}

// Stats returns a copy of the poller statistics.
func (p *Poller) Stats() Stats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	stats := p.stats
	if stats.LastTriggerAt != nil {
		t := *stats.LastTriggerAt
		stats.LastTriggerAt = &t
	}
	return stats
}

func (p *Poller) runLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}
