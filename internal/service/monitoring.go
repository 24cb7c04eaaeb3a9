package service

import (
	"context"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// recordEvent appends to the monitoring log. Append failures are logged and
// swallowed; monitoring must never fail the operation being monitored.
func recordEvent(ctx context.Context, repo ports.MonitoringRepository, log zerolog.Logger, event *domain.MonitoringEvent) {
	if err := repo.Append(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("acquirer", string(event.Acquirer)).
			Str("event_type", string(event.EventType)).
			Msg("monitoring: failed to append event")
	}
}
