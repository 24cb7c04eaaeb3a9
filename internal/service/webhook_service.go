package service

import (
	"context"
	"net/http"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// webhookService implements ports.WebhookIngestor. One callback delivery
// flows through origin validation, payload normalization and per-event
// conditional transitions. Redelivered events land on transitions that have
// already happened and count as duplicates; notifications fire only for
// transitions that actually applied.
type webhookService struct {
	adapters ports.AdapterRegistry
	txRepo   ports.TransactionRepository
	monRepo  ports.MonitoringRepository
	notifier ports.Notifier
	log      zerolog.Logger
}

// NewWebhookService creates the webhook ingestor.
func NewWebhookService(
	adapters ports.AdapterRegistry,
	txRepo ports.TransactionRepository,
	monRepo ports.MonitoringRepository,
	notifier ports.Notifier,
	log zerolog.Logger,
) ports.WebhookIngestor {
	return &webhookService{
		adapters: adapters,
		txRepo:   txRepo,
		monRepo:  monRepo,
		notifier: notifier,
		log:      log,
	}
}

func (s *webhookService) Ingest(ctx context.Context, acquirer domain.Acquirer, clientIP string, headers http.Header, body []byte) (*ports.IngestResult, error) {
	adapter, err := s.adapters.Get(acquirer)
	if err != nil {
		return nil, err
	}

	recordEvent(ctx, s.monRepo, s.log, &domain.MonitoringEvent{
		Acquirer:  acquirer,
		EventType: domain.EventWebhookReceived,
		CreatedAt: time.Now(),
	})

	authenticated, err := adapter.AuthenticateWebhook(ctx, clientIP, headers, body)
	if err != nil {
		recordEvent(ctx, s.monRepo, s.log, &domain.MonitoringEvent{
			Acquirer:     acquirer,
			EventType:    domain.EventWebhookBlocked,
			ErrorMessage: err.Error(),
			CreatedAt:    time.Now(),
		})
		s.log.Warn().Err(err).
			Str("acquirer", string(acquirer)).
			Str("client_ip", clientIP).
			Msg("webhook: origin validation failed")
		return nil, err
	}
	if authenticated {
		recordEvent(ctx, s.monRepo, s.log, &domain.MonitoringEvent{
			Acquirer:  acquirer,
			EventType: domain.EventWebhookAuthenticated,
			CreatedAt: time.Now(),
		})
	} else {
		// No validation scheme configured for this acquirer. Accepted, but
		// never silently: permissive traffic must stay distinguishable.
		s.log.Warn().
			Str("acquirer", string(acquirer)).
			Str("client_ip", clientIP).
			Msg("webhook: accepted without origin validation")
	}

	events, err := adapter.ParseWebhook(ctx, body)
	if err != nil {
		return nil, err
	}

	result := &ports.IngestResult{Received: len(events)}
	for _, event := range events {
		s.applyEvent(ctx, acquirer, event, result)
	}

	s.log.Info().
		Str("acquirer", string(acquirer)).
		Int("received", result.Received).
		Int("applied", result.Applied).
		Int("duplicates", result.Duplicates).
		Int("unmatched", result.Unmatched).
		Int("invalid", result.Invalid).
		Msg("webhook: delivery processed")
	return result, nil
}

// applyEvent processes one normalized tuple. Failures affect only this
// event's counter; the rest of a batched delivery still proceeds.
func (s *webhookService) applyEvent(ctx context.Context, acquirer domain.Acquirer, event ports.WebhookEvent, result *ports.IngestResult) {
	txn, err := s.txRepo.GetByExternalID(ctx, event.ExternalID, acquirer)
	if err != nil {
		s.log.Error().Err(err).
			Str("external_id", event.ExternalID).
			Msg("webhook: transaction lookup failed")
		result.Invalid++
		return
	}
	if txn == nil {
		s.log.Warn().
			Str("acquirer", string(acquirer)).
			Str("external_id", event.ExternalID).
			Msg("webhook: no matching transaction")
		recordEvent(ctx, s.monRepo, s.log, &domain.MonitoringEvent{
			Acquirer:     acquirer,
			EventType:    domain.EventFailure,
			ErrorMessage: "unmatched webhook external_id " + event.ExternalID,
			CreatedAt:    time.Now(),
		})
		result.Unmatched++
		return
	}

	if !txn.CanTransitionTo(event.EventType) {
		if txn.Status == event.EventType {
			// Redelivery of a transition that already happened.
			result.Duplicates++
			return
		}
		s.log.Warn().
			Str("external_id", event.ExternalID).
			Str("from", string(txn.Status)).
			Str("to", string(event.EventType)).
			Msg("webhook: illegal status transition ignored")
		result.Invalid++
		return
	}

	applied, err := s.txRepo.ApplyTransition(ctx, txn.ID, txn.Status, event.EventType, event.PaidAt)
	if err != nil {
		s.log.Error().Err(err).
			Str("external_id", event.ExternalID).
			Msg("webhook: transition failed")
		result.Invalid++
		return
	}
	if !applied {
		// Lost the race against a concurrent delivery of the same event.
		result.Duplicates++
		return
	}
	result.Applied++

	txn.Status = event.EventType
	if event.PaidAt != nil {
		txn.PaidAt = event.PaidAt
	}
	if err := s.notifier.NotifyStatusChange(ctx, txn); err != nil {
		s.log.Error().Err(err).
			Str("external_id", event.ExternalID).
			Msg("webhook: notification dispatch failed")
	}
}
