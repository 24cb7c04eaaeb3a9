package service

import (
	"context"
	"strings"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// routingService implements ports.Router. The merchant's preferred acquirer
// always wins while it is healthy; failover to the configured fallback list
// happens only on explicit opt-in. Without the opt-in a degraded preferred
// acquirer surfaces as an unavailability error, never as a silent reroute.
type routingService struct {
	settings        ports.SettingsResolver
	healthRepo      ports.HealthRepository
	defaultAcquirer domain.Acquirer
	log             zerolog.Logger
}

// NewRoutingService creates the routing service. defaultAcquirer is the
// process-level fallback when no tier names a preference.
func NewRoutingService(settings ports.SettingsResolver, healthRepo ports.HealthRepository, defaultAcquirer domain.Acquirer, log zerolog.Logger) ports.Router {
	return &routingService{
		settings:        settings,
		healthRepo:      healthRepo,
		defaultAcquirer: defaultAcquirer,
		log:             log,
	}
}

func (s *routingService) Pick(ctx context.Context, merchantID uuid.UUID) (domain.Acquirer, error) {
	preferred := s.defaultAcquirer
	if configured, err := s.settings.Resolve(ctx, domain.SettingPreferredAcquirer, merchantID); err != nil {
		return "", err
	} else if configured != "" {
		preferred = domain.Acquirer(configured)
	}
	if !preferred.IsValid() {
		return "", apperror.Validation("configured acquirer is not recognized: " + string(preferred))
	}

	healthy, err := s.isUsable(ctx, preferred, merchantID)
	if err != nil {
		return "", err
	}
	if healthy {
		return preferred, nil
	}

	failover, err := s.settings.Resolve(ctx, domain.SettingFailoverEnabled, merchantID)
	if err != nil {
		return "", err
	}
	if failover != "true" {
		return "", apperror.ErrAcquirerUnavailable(string(preferred))
	}

	fallback, err := s.pickFallback(ctx, merchantID, preferred)
	if err != nil {
		return "", err
	}
	if fallback == "" {
		return "", apperror.ErrAcquirerUnavailable(string(preferred))
	}
	s.log.Info().
		Str("merchant_id", merchantID.String()).
		Str("preferred", string(preferred)).
		Str("fallback", string(fallback)).
		Msg("routing: preferred acquirer unhealthy, failing over")
	return fallback, nil
}

// pickFallback returns the healthiest candidate from the merchant's fallback
// list, breaking ties on lowest average probe latency. A candidate with no
// health row has never been probed and counts as healthy with unknown
// latency.
func (s *routingService) pickFallback(ctx context.Context, merchantID uuid.UUID, preferred domain.Acquirer) (domain.Acquirer, error) {
	configured, err := s.settings.Resolve(ctx, domain.SettingFallbackAcquirers, merchantID)
	if err != nil {
		return "", err
	}
	if configured == "" {
		return "", nil
	}

	var best domain.Acquirer
	bestLatency := int64(-1)
	for _, raw := range strings.Split(configured, ",") {
		candidate := domain.Acquirer(strings.TrimSpace(raw))
		if !candidate.IsValid() || candidate == preferred {
			continue
		}
		usable, err := s.isUsable(ctx, candidate, merchantID)
		if err != nil {
			return "", err
		}
		if !usable {
			continue
		}
		health, err := s.healthRepo.Get(ctx, candidate)
		if err != nil {
			return "", err
		}
		var latency int64
		if health != nil {
			latency = health.AvgResponseTimeMs
		}
		if bestLatency == -1 || latency < bestLatency {
			best = candidate
			bestLatency = latency
		}
	}
	return best, nil
}

// isUsable reports whether an acquirer is enabled for the merchant and not
// currently marked unhealthy. Never-probed acquirers pass: pessimism before
// the first probe would strand freshly enabled acquirers.
func (s *routingService) isUsable(ctx context.Context, acquirer domain.Acquirer, merchantID uuid.UUID) (bool, error) {
	enabled, err := s.settings.Resolve(ctx, domain.AcquirerEnabledKey(acquirer), merchantID)
	if err != nil {
		return false, err
	}
	if enabled == "false" {
		return false, nil
	}

	health, err := s.healthRepo.Get(ctx, acquirer)
	if err != nil {
		return false, err
	}
	return health == nil || health.IsHealthy, nil
}
