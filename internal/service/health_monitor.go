package service

import (
	"context"
	"sync"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// probeDescription marks synthetic charges so acquirer-side dashboards can
// tell them from merchant traffic.
const probeDescription = "health-probe"

// HealthMonitor periodically probes every registered acquirer with a
// minimum-amount synthetic charge and maintains the per-acquirer health
// gauge. One instance per deployment runs each cycle, elected by a Redis
// lease; the rest skip the window.
//
// Probes run concurrently with a per-probe timeout so one hanging acquirer
// cannot starve the others. A configuration error skips the gauge entirely:
// an incomplete credential bundle is a merchant setup problem, not acquirer
// degradation.
type HealthMonitor struct {
	adapters   ports.AdapterRegistry
	healthRepo ports.HealthRepository
	monRepo    ports.MonitoringRepository
	settings   ports.SettingsResolver
	lock       ports.LeaderLock
	interval   time.Duration
	timeout    time.Duration
	log        zerolog.Logger
}

// NewHealthMonitor creates the health monitor.
func NewHealthMonitor(
	adapters ports.AdapterRegistry,
	healthRepo ports.HealthRepository,
	monRepo ports.MonitoringRepository,
	settings ports.SettingsResolver,
	lock ports.LeaderLock,
	interval, timeout time.Duration,
	log zerolog.Logger,
) *HealthMonitor {
	return &HealthMonitor{
		adapters:   adapters,
		healthRepo: healthRepo,
		monRepo:    monRepo,
		settings:   settings,
		lock:       lock,
		interval:   interval,
		timeout:    timeout,
		log:        log,
	}
}

// Start runs probe cycles until ctx is cancelled. Call it from its own
// goroutine.
func (m *HealthMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("health monitor: stopped")
			return
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle probes all enabled acquirers once, if this instance wins the
// cycle lease.
func (m *HealthMonitor) RunCycle(ctx context.Context) {
	leader, err := m.lock.TryAcquire(ctx, m.interval)
	if err != nil {
		m.log.Warn().Err(err).Msg("health monitor: leader election failed, probing anyway")
	} else if !leader {
		return
	}

	var wg sync.WaitGroup
	for _, adapter := range m.adapters.All() {
		wg.Add(1)
		go func(a ports.Adapter) {
			defer wg.Done()
			m.probe(ctx, a)
		}(adapter)
	}
	wg.Wait()
}

func (m *HealthMonitor) probe(ctx context.Context, adapter ports.Adapter) {
	name := adapter.Name()

	enabled, err := m.settings.Resolve(ctx, domain.AcquirerEnabledKey(name), uuid.Nil)
	if err != nil {
		m.log.Error().Err(err).Str("acquirer", string(name)).Msg("health monitor: settings lookup failed")
		return
	}
	if enabled == "false" {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	_, err = adapter.CreateCharge(probeCtx, ports.CreateChargeInput{
		MerchantID:  uuid.Nil,
		Amount:      adapter.MinAmount(),
		Description: probeDescription,
		ExpiresIn:   time.Minute,
	})
	elapsed := time.Since(start)

	if apperror.IsConfig(err) {
		m.log.Debug().Err(err).
			Str("acquirer", string(name)).
			Msg("health monitor: credentials incomplete, probe skipped")
		return
	}
	m.recordProbe(ctx, name, elapsed, err)
}

// recordProbe folds one probe outcome into the gauge and the monitoring log.
// The parent ctx is used for persistence: a probe that timed out must still
// be recorded.
func (m *HealthMonitor) recordProbe(ctx context.Context, name domain.Acquirer, elapsed time.Duration, probeErr error) {
	health, err := m.healthRepo.Get(ctx, name)
	if err != nil {
		m.log.Error().Err(err).Str("acquirer", string(name)).Msg("health monitor: gauge read failed")
		return
	}
	if health == nil {
		health = &domain.AcquirerHealth{Acquirer: name}
	}

	now := time.Now()
	event := &domain.MonitoringEvent{
		Acquirer:       name,
		ResponseTimeMs: elapsed.Milliseconds(),
		CreatedAt:      now,
	}
	if probeErr != nil {
		health.RecordFailure(now, elapsed, probeErr.Error())
		event.EventType = domain.EventFailure
		event.ErrorMessage = probeErr.Error()
		m.log.Warn().Err(probeErr).
			Str("acquirer", string(name)).
			Int("consecutive_failures", health.ConsecutiveFailures).
			Msg("health monitor: probe failed")
	} else {
		health.RecordSuccess(now, elapsed)
		event.EventType = domain.EventSuccess
	}

	if err := m.healthRepo.Upsert(ctx, health); err != nil {
		m.log.Error().Err(err).Str("acquirer", string(name)).Msg("health monitor: gauge write failed")
	}
	recordEvent(ctx, m.monRepo, m.log, event)
}
