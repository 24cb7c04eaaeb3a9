package service

import (
	"context"
	"strconv"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// reconciliationService implements ports.ReconciliationService: importing
// acquirer-side transactions the local ledger never saw, usually because a
// webhook delivery was lost while the service was down. Every identifier
// classifies into exactly one of imported, already_exists, not_found or
// error; the summary adds up to the total by construction.
type reconciliationService struct {
	adapters ports.AdapterRegistry
	txRepo   ports.TransactionRepository
	settings ports.SettingsResolver
	log      zerolog.Logger
}

// NewReconciliationService creates the reconciliation service.
func NewReconciliationService(
	adapters ports.AdapterRegistry,
	txRepo ports.TransactionRepository,
	settings ports.SettingsResolver,
	log zerolog.Logger,
) ports.ReconciliationService {
	return &reconciliationService{
		adapters: adapters,
		txRepo:   txRepo,
		settings: settings,
		log:      log,
	}
}

func (s *reconciliationService) Reconcile(ctx context.Context, req ports.ReconciliationRequest) (*ports.ReconciliationReport, error) {
	if req.MerchantID == uuid.Nil {
		return nil, apperror.Validation("merchant id is required")
	}
	byIDs := len(req.ExternalIDs) > 0
	byRange := req.StartDate != nil && req.EndDate != nil
	if byIDs == byRange {
		return nil, apperror.Validation("provide either external_ids or a start_date/end_date range")
	}

	acquirerName := req.Acquirer
	if acquirerName == "" {
		configured, err := s.settings.Resolve(ctx, domain.SettingPreferredAcquirer, req.MerchantID)
		if err != nil {
			return nil, err
		}
		acquirerName = domain.Acquirer(configured)
	}
	if !acquirerName.IsValid() {
		return nil, apperror.Validation("no acquirer specified and none configured for merchant")
	}

	var results []ports.ReconciliationResult
	if byIDs {
		adapter, err := s.adapters.Get(acquirerName)
		if err != nil {
			return nil, err
		}
		results = make([]ports.ReconciliationResult, 0, len(req.ExternalIDs))
		for _, externalID := range req.ExternalIDs {
			results = append(results, s.reconcileByID(ctx, adapter, acquirerName, req.MerchantID, externalID))
		}
	} else {
		if req.EndDate.Before(*req.StartDate) {
			return nil, apperror.Validation("end_date precedes start_date")
		}
		// Date-range mode needs the listing capability; its absence fails
		// the whole request rather than reporting zero results.
		lister, err := s.adapters.Lister(acquirerName)
		if err != nil {
			return nil, err
		}
		upstream, err := lister.ListTransactions(ctx, req.MerchantID, *req.StartDate, *req.EndDate)
		if err != nil {
			return nil, err
		}
		results = make([]ports.ReconciliationResult, 0, len(upstream))
		for i := range upstream {
			results = append(results, s.reconcileStatus(ctx, acquirerName, req.MerchantID, &upstream[i]))
		}
	}

	report := &ports.ReconciliationReport{Results: results}
	for _, r := range results {
		report.Summary.Total++
		switch r.Status {
		case ports.ReconImported:
			report.Summary.Imported++
		case ports.ReconAlreadyExists:
			report.Summary.AlreadyExists++
		case ports.ReconNotFound:
			report.Summary.NotFound++
		default:
			report.Summary.Errors++
		}
	}

	s.log.Info().
		Str("acquirer", string(acquirerName)).
		Str("merchant_id", req.MerchantID.String()).
		Int("total", report.Summary.Total).
		Int("imported", report.Summary.Imported).
		Msg("reconciliation completed")
	return report, nil
}

func (s *reconciliationService) reconcileByID(ctx context.Context, adapter ports.Adapter, acquirerName domain.Acquirer, merchantID uuid.UUID, externalID string) ports.ReconciliationResult {
	existing, err := s.txRepo.GetByExternalID(ctx, externalID, acquirerName)
	if err != nil {
		return ports.ReconciliationResult{ExternalID: externalID, Status: ports.ReconError, Message: err.Error()}
	}
	if existing != nil {
		return ports.ReconciliationResult{ExternalID: externalID, Status: ports.ReconAlreadyExists}
	}

	status, err := adapter.QueryStatus(ctx, merchantID, externalID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return ports.ReconciliationResult{ExternalID: externalID, Status: ports.ReconNotFound}
		}
		return ports.ReconciliationResult{ExternalID: externalID, Status: ports.ReconError, Message: err.Error()}
	}
	return s.importTransaction(ctx, acquirerName, merchantID, status)
}

// reconcileStatus handles one upstream listing entry; every entry exists at
// the acquirer by definition, so not_found cannot occur here.
func (s *reconciliationService) reconcileStatus(ctx context.Context, acquirerName domain.Acquirer, merchantID uuid.UUID, status *ports.StatusResult) ports.ReconciliationResult {
	existing, err := s.txRepo.GetByExternalID(ctx, status.ExternalID, acquirerName)
	if err != nil {
		return ports.ReconciliationResult{ExternalID: status.ExternalID, Status: ports.ReconError, Message: err.Error()}
	}
	if existing != nil {
		return ports.ReconciliationResult{ExternalID: status.ExternalID, Status: ports.ReconAlreadyExists}
	}
	return s.importTransaction(ctx, acquirerName, merchantID, status)
}

func (s *reconciliationService) importTransaction(ctx context.Context, acquirerName domain.Acquirer, merchantID uuid.UUID, status *ports.StatusResult) ports.ReconciliationResult {
	feePercent, feeFixed := s.feeSnapshot(ctx, merchantID)

	txn := &domain.Transaction{
		ID:         uuid.New(),
		ExternalID: status.ExternalID,
		Acquirer:   acquirerName,
		MerchantID: merchantID,
		Amount:     status.Amount,
		Status:     status.Status,
		FeePercent: feePercent,
		FeeFixed:   feeFixed,
		Metadata:   map[string]string{"source": "reconciliation"},
		CreatedAt:  time.Now(),
		PaidAt:     status.PaidAt,
	}
	if err := s.txRepo.Create(ctx, txn); err != nil {
		if apperror.IsDuplicate(err) {
			// Raced a concurrent import or a late webhook. Same outcome.
			return ports.ReconciliationResult{ExternalID: status.ExternalID, Status: ports.ReconAlreadyExists}
		}
		return ports.ReconciliationResult{ExternalID: status.ExternalID, Status: ports.ReconError, Message: err.Error()}
	}

	s.log.Info().
		Str("external_id", status.ExternalID).
		Str("acquirer", string(acquirerName)).
		Str("status", string(status.Status)).
		Msg("reconciliation: imported transaction")
	return ports.ReconciliationResult{ExternalID: status.ExternalID, Status: ports.ReconImported}
}

// feeSnapshot resolves the merchant's current fee schedule for an imported
// row. Resolution failures degrade to zero fees; the import itself matters
// more than the fee annotation.
func (s *reconciliationService) feeSnapshot(ctx context.Context, merchantID uuid.UUID) (float64, int64) {
	var feePercent float64
	var feeFixed int64
	if raw, err := s.settings.Resolve(ctx, domain.SettingFeePercent, merchantID); err == nil && raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			feePercent = parsed
		}
	}
	if raw, err := s.settings.Resolve(ctx, domain.SettingFeeFixed, merchantID); err == nil && raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			feeFixed = parsed
		}
	}
	return feePercent, feeFixed
}
