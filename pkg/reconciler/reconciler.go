// Package reconciler runs a background sweep that verifies idle workspaces
// are still valid linked working trees, surfacing any that drifted into
// ERROR so the orchestrator's status reflects reduced capacity promptly
// rather than only at the next acquire attempt.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/proactiva/planrunner/pkg/events"
	"github.com/proactiva/planrunner/pkg/log"
	"github.com/proactiva/planrunner/pkg/metrics"
	"github.com/proactiva/planrunner/pkg/pool"
)

// Reconciler periodically health-checks a Pool's idle workspaces.
type Reconciler struct {
	pool     *pool.Pool
	broker   *events.Broker
	logger   zerolog.Logger
	interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
}

// New creates a Reconciler bound to pool, optionally publishing workspace
// events to broker (nil is valid: events are simply not published).
func New(p *pool.Pool, broker *events.Broker, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reconciler{
		pool:     p,
		broker:   broker,
		logger:   log.WithComponent("reconciler"),
		interval: interval,
	}
}

// Start begins the reconciliation loop.
func (r *Reconciler) Start() {
	r.mu.Lock()
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()
	go r.run(stopCh)
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != nil {
		close(r.stopCh)
		r.stopCh = nil
	}
}

func (r *Reconciler) run(stopCh chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

func (r *Reconciler) reconcile() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	unhealthy := r.pool.HealthCheck(ctx)
	for _, id := range unhealthy {
		r.logger.Warn().Str("workspace_id", id).Msg("workspace failed health check, marked error")
		if r.broker != nil {
			r.broker.Publish(&events.Event{Type: events.EventWorkspaceError, Message: "workspace " + id + " failed verification"})
		}
	}
}
