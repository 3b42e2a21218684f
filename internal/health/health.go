// Package health watches the services a turn depends on (the model
// provider and the WhatsApp bridge) so an outage is visible before a
// guest hits it.
//
// Each watched service is probed with exponential backoff at startup
// (2s, 4s, 8s, ... capped at 60s) and then polled every minute.
// Transitions between reachable and unreachable are logged and reported
// through the OnDown and OnReady callbacks.
package health

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// Probe checks whether a service is reachable. A nil error means healthy.
type Probe func(ctx context.Context) error

// Schedule controls probe timing. Zero fields take the values of
// [DefaultSchedule].
type Schedule struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Retries      int
	PollInterval time.Duration
	ProbeTimeout time.Duration
}

// DefaultSchedule returns the production probe timing.
func DefaultSchedule() Schedule {
	return Schedule{
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		Retries:      8,
		PollInterval: 60 * time.Second,
		ProbeTimeout: 10 * time.Second,
	}
}

func (s Schedule) withDefaults() Schedule {
	d := DefaultSchedule()
	if s.InitialDelay <= 0 {
		s.InitialDelay = d.InitialDelay
	}
	if s.MaxDelay <= 0 {
		s.MaxDelay = d.MaxDelay
	}
	if s.Retries <= 0 {
		s.Retries = d.Retries
	}
	if s.PollInterval <= 0 {
		s.PollInterval = d.PollInterval
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = d.ProbeTimeout
	}
	return s
}

// Status is the last known state of a service.
type Status struct {
	Name      string    `json:"name"`
	Ready     bool      `json:"ready"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// Monitor probes a set of named services in the background.
type Monitor struct {
	logger   *slog.Logger
	schedule Schedule

	// OnDown is called when a ready service stops answering. OnReady is
	// called when a service answers for the first time or recovers.
	// Both run on the probing goroutine and must not block for long.
	OnDown  func(name string, err error)
	OnReady func(name string)

	mu     sync.Mutex
	status map[string]Status
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor with the given schedule.
func NewMonitor(schedule Schedule, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:   logger.With("component", "health"),
		schedule: schedule.withDefaults(),
		status:   make(map[string]Status),
	}
}

// Watch starts probing name until ctx is cancelled.
func (m *Monitor) Watch(ctx context.Context, name string, probe Probe) {
	m.mu.Lock()
	m.status[name] = Status{Name: name}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx, name, probe)
	}()
}

// Wait blocks until every watcher has returned.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Status returns a snapshot of every watched service.
func (m *Monitor) Status() map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.status)
}

func (m *Monitor) run(ctx context.Context, name string, probe Probe) {
	delay := m.schedule.InitialDelay
	for attempt := 1; attempt <= m.schedule.Retries; attempt++ {
		err := m.check(ctx, name, probe)
		if err == nil {
			m.logger.Info("service connected", "service", name, "after_attempts", attempt)
			break
		}
		if attempt == m.schedule.Retries {
			m.logger.Warn("service unreachable at startup, polling in background",
				"service", name,
				"attempts", attempt,
				"error", err,
			)
			break
		}
		m.logger.Debug("startup probe failed, retrying",
			"service", name,
			"attempt", attempt,
			"next_delay", delay.String(),
			"error", err,
		)
		if !sleepCtx(ctx, delay) {
			return
		}
		delay = min(delay*2, m.schedule.MaxDelay)
	}

	ticker := time.NewTicker(m.schedule.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx, name, probe)
		}
	}
}

// check runs one probe, records the outcome and fires transition
// callbacks.
func (m *Monitor) check(ctx context.Context, name string, probe Probe) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.schedule.ProbeTimeout)
	err := probe(probeCtx)
	cancel()

	// A probe cut short by shutdown says nothing about the service.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.mu.Lock()
	prev := m.status[name]
	next := Status{Name: name, Ready: err == nil, LastCheck: time.Now()}
	if err != nil {
		next.LastError = err.Error()
	}
	m.status[name] = next
	m.mu.Unlock()

	switch {
	case prev.Ready && !next.Ready:
		m.logger.Warn("service became unreachable", "service", name, "error", err)
		if m.OnDown != nil {
			m.OnDown(name, err)
		}
	case !prev.Ready && next.Ready:
		if !prev.LastCheck.IsZero() {
			m.logger.Info("service recovered", "service", name)
		}
		if m.OnReady != nil {
			m.OnReady(name)
		}
	}
	return err
}

// sleepCtx sleeps for d or until ctx is cancelled. It reports whether
// the full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
