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

// chargeService implements ports.ChargeService: the orchestration path from a
// merchant's charge request to a persisted GENERATED transaction. Routing,
// minimum-amount enforcement, fee capture and monitoring all happen here;
// adapters only translate wire protocols.
type chargeService struct {
	router       ports.Router
	adapters     ports.AdapterRegistry
	txRepo       ports.TransactionRepository
	settings     ports.SettingsResolver
	monRepo      ports.MonitoringRepository
	chargeExpiry time.Duration
	log          zerolog.Logger
}

// NewChargeService creates the charge service.
func NewChargeService(
	router ports.Router,
	adapters ports.AdapterRegistry,
	txRepo ports.TransactionRepository,
	settings ports.SettingsResolver,
	monRepo ports.MonitoringRepository,
	chargeExpiry time.Duration,
	log zerolog.Logger,
) ports.ChargeService {
	return &chargeService{
		router:       router,
		adapters:     adapters,
		txRepo:       txRepo,
		settings:     settings,
		monRepo:      monRepo,
		chargeExpiry: chargeExpiry,
		log:          log,
	}
}

func (s *chargeService) CreateCharge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResponse, error) {
	if req.Amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}
	if req.MerchantID == uuid.Nil {
		return nil, apperror.Validation("merchant id is required")
	}

	acquirerName, err := s.router.Pick(ctx, req.MerchantID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapters.Get(acquirerName)
	if err != nil {
		return nil, err
	}

	// The floor is checked before any upstream call so a too-small amount is
	// a merchant error, not an acquirer failure.
	if req.Amount < adapter.MinAmount() {
		return nil, apperror.ErrAmountTooLow(string(acquirerName), adapter.MinAmount())
	}

	feePercent, feeFixed, err := s.resolveFees(ctx, req.MerchantID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := adapter.CreateCharge(ctx, ports.CreateChargeInput{
		MerchantID:  req.MerchantID,
		Amount:      req.Amount,
		PayerName:   req.PayerName,
		Description: req.Description,
		ExpiresIn:   s.chargeExpiry,
	})
	elapsed := time.Since(start)
	if err != nil {
		if apperror.IsTransient(err) {
			recordEvent(ctx, s.monRepo, s.log, &domain.MonitoringEvent{
				Acquirer:       acquirerName,
				EventType:      domain.EventFailure,
				ErrorMessage:   err.Error(),
				ResponseTimeMs: elapsed.Milliseconds(),
				CreatedAt:      time.Now(),
			})
		}
		return nil, err
	}
	recordEvent(ctx, s.monRepo, s.log, &domain.MonitoringEvent{
		Acquirer:       acquirerName,
		EventType:      domain.EventSuccess,
		ResponseTimeMs: elapsed.Milliseconds(),
		CreatedAt:      time.Now(),
	})

	txn := &domain.Transaction{
		ID:         uuid.New(),
		ExternalID: result.ExternalID,
		Acquirer:   acquirerName,
		MerchantID: req.MerchantID,
		Amount:     req.Amount,
		Status:     domain.TransactionStatusGenerated,
		FeePercent: feePercent,
		FeeFixed:   feeFixed,
		Metadata:   chargeMetadata(req),
		CreatedAt:  time.Now(),
	}
	if err := s.txRepo.Create(ctx, txn); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("external_id", txn.ExternalID).
		Str("acquirer", string(acquirerName)).
		Int64("amount", txn.Amount).
		Msg("charge created")

	return &ports.ChargeResponse{
		TransactionID: txn.ID,
		ExternalID:    result.ExternalID,
		Acquirer:      acquirerName,
		PixCode:       result.PixCode,
		QRPayload:     result.QRPayload,
		ExpiresAt:     result.ExpiresAt,
	}, nil
}

func (s *chargeService) GetCharge(ctx context.Context, acquirer domain.Acquirer, externalID string) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByExternalID(ctx, externalID, acquirer)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	return txn, nil
}

// resolveFees reads the merchant's fee schedule at charge time. The values
// are captured on the transaction row, so later schedule changes never
// rewrite history.
func (s *chargeService) resolveFees(ctx context.Context, merchantID uuid.UUID) (float64, int64, error) {
	var feePercent float64
	var feeFixed int64

	if raw, err := s.settings.Resolve(ctx, domain.SettingFeePercent, merchantID); err != nil {
		return 0, 0, err
	} else if raw != "" {
		feePercent, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, 0, apperror.Validation("fee_percent is not a decimal number")
		}
	}

	if raw, err := s.settings.Resolve(ctx, domain.SettingFeeFixed, merchantID); err != nil {
		return 0, 0, err
	} else if raw != "" {
		feeFixed, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, 0, apperror.Validation("fee_fixed is not an integer amount")
		}
	}

	return feePercent, feeFixed, nil
}

func chargeMetadata(req ports.ChargeRequest) map[string]string {
	meta := map[string]string{}
	if req.PayerName != "" {
		meta["payer_name"] = req.PayerName
	}
	if req.Description != "" {
		meta["description"] = req.Description
	}
	return meta
}
