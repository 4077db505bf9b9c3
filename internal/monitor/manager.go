// Package monitor runs the refresh loop: once per tick it samples the host
// and the process table through the proc reader and fans the resulting
// Snapshot out to subscribers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/proctop-web/internal/config"
	"github.com/skobkin/proctop-web/internal/proc"
)

// Manager owns the reader, caches the latest snapshot and fans out updates.
type Manager struct {
	interval time.Duration
	reader   *proc.Reader
	logger   *slog.Logger

	// refreshMu serialises collector access; the Processor and the Process
	// models it holds are single-owner.
	refreshMu sync.Mutex
	collector *collector

	mu          sync.RWMutex
	latest      Snapshot
	hasLatest   bool
	subscribers map[*subscriber]struct{}
	closeOnce   sync.Once
	closeErr    error
}

// NewManager builds a Manager around reader. The manager takes ownership of
// the reader and closes it in Close.
func NewManager(interval time.Duration, cfg config.ProcConfig, reader *proc.Reader, logger *slog.Logger) (*Manager, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		interval:    interval,
		reader:      reader,
		logger:      logger.With("component", "monitor_manager"),
		collector:   newCollector(reader, cfg.MaxPIDs, cfg.Top, logger.With("component", "monitor_collector")),
		subscribers: make(map[*subscriber]struct{}),
	}, nil
}

// Run refreshes on every tick until the context is canceled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("monitor started", "interval", m.interval, "clock_ticks", m.reader.ClockTicks())
	m.Refresh(time.Now())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping", "reason", ctx.Err())
			return m.Close()
		case now := <-ticker.C:
			m.Refresh(now)
		}
	}
}

// Refresh takes one sample, publishes it and returns it.
func (m *Manager) Refresh(now time.Time) Snapshot {
	m.refreshMu.Lock()
	snapshot := m.collector.collect(now)
	m.refreshMu.Unlock()

	m.logger.Debug("snapshot collected",
		"cpu", snapshot.System.CPUUtilization,
		"processes", len(snapshot.Processes),
	)
	m.publish(snapshot)
	return snapshot
}

// Latest returns the most recent snapshot.
func (m *Manager) Latest() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.hasLatest
}

// Subscribe registers a listener. The latest snapshot, if any, is delivered
// immediately. A slow listener only ever sees the newest pending snapshot.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	sub := newSubscriber()

	m.mu.Lock()
	m.subscribers[sub] = struct{}{}
	if m.hasLatest {
		sub.send(m.latest)
	}
	m.mu.Unlock()

	unsubscribe := func() {
		m.removeSubscriber(sub)
	}
	return sub.channel(), unsubscribe
}

// Ready reports whether at least one snapshot has been published.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasLatest
}

// ClockTicks exposes the reader's jiffies-per-second.
func (m *Manager) ClockTicks() int64 {
	return m.reader.ClockTicks()
}

func (m *Manager) publish(snapshot Snapshot) {
	m.mu.Lock()
	m.latest = snapshot
	m.hasLatest = true
	subs := make([]*subscriber, 0, len(m.subscribers))
	for sub := range m.subscribers {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.send(snapshot)
	}
}

func (m *Manager) removeSubscriber(sub *subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, sub)
	sub.close()
}

// Close releases the proc reader. Safe for repeated use.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		var errs []error
		if err := m.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reader: %w", err))
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}

type subscriber struct {
	ch     chan Snapshot
	mu     sync.Mutex
	closed bool
}

func newSubscriber() *subscriber {
	return &subscriber{
		ch: make(chan Snapshot, 1),
	}
}

func (s *subscriber) channel() <-chan Snapshot {
	return s.ch
}

func (s *subscriber) send(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snapshot:
	default:
		// Drop oldest to make room.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- snapshot:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	close(s.ch)
	s.closed = true
}
