package service

import (
	"context"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// secretSettings lists the keys whose values are encrypted before they reach
// the store. The resolver decrypts by row flag, not by this set, so rotating
// a key in or out of it never strands existing rows.
var secretSettings = map[string]bool{
	domain.SettingEfiClientSecret:        true,
	domain.SettingEfiCertificate:         true,
	domain.SettingEfiCertificateKey:      true,
	domain.SettingWooviAppID:             true,
	domain.SettingWooviWebhookSecret:     true,
	domain.SettingMercadoPagoAccessToken: true,
	domain.SettingNotifySecret:           true,
}

// SettingsService implements ports.SettingsResolver and ports.SettingsWriter
// with the three-tier precedence: merchant row, platform row, process-level
// default. An empty value at one tier falls through to the next, so each
// field of a credential bundle resolves independently.
type SettingsService struct {
	repo     ports.SettingsRepository
	enc      ports.EncryptionService
	defaults map[string]string
	log      zerolog.Logger
}

// NewSettingsService creates the settings service. defaults is the
// process-level tier from configuration.
func NewSettingsService(repo ports.SettingsRepository, enc ports.EncryptionService, defaults map[string]string, log zerolog.Logger) *SettingsService {
	if defaults == nil {
		defaults = map[string]string{}
	}
	return &SettingsService{repo: repo, enc: enc, defaults: defaults, log: log}
}

// Resolve returns the value for key, or "" when no tier has one. A nil
// merchant id (uuid.Nil) skips the merchant tier, which is how webhook-time
// resolution works before the merchant is known.
func (s *SettingsService) Resolve(ctx context.Context, key string, merchantID uuid.UUID) (string, error) {
	if merchantID != uuid.Nil {
		row, err := s.repo.GetMerchant(ctx, merchantID, key)
		if err != nil {
			return "", err
		}
		value, err := s.rowValue(row)
		if err != nil || value != "" {
			return value, err
		}
	}

	row, err := s.repo.GetPlatform(ctx, key)
	if err != nil {
		return "", err
	}
	value, err := s.rowValue(row)
	if err != nil || value != "" {
		return value, err
	}

	return s.defaults[key], nil
}

// ResolveRequired is Resolve with a configuration error instead of "" when no
// tier has a value. The acquirer names which bundle is incomplete.
func (s *SettingsService) ResolveRequired(ctx context.Context, key string, merchantID uuid.UUID, acquirer domain.Acquirer) (string, error) {
	value, err := s.Resolve(ctx, key, merchantID)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", apperror.ErrConfigMissing(string(acquirer), key)
	}
	return value, nil
}

// Save upserts a setting row, encrypting secret-valued keys first.
func (s *SettingsService) Save(ctx context.Context, setting *domain.Setting) error {
	if setting.Key == "" {
		return apperror.Validation("setting key is required")
	}
	if secretSettings[setting.Key] && setting.Value != "" {
		ciphertext, err := s.enc.Encrypt(setting.Value)
		if err != nil {
			return apperror.InternalError(err)
		}
		setting.Value = ciphertext
		setting.Encrypted = true
	}
	return s.repo.Upsert(ctx, setting)
}

func (s *SettingsService) rowValue(row *domain.Setting) (string, error) {
	if row == nil || row.Value == "" {
		return "", nil
	}
	if row.Encrypted {
		plaintext, err := s.enc.Decrypt(row.Value)
		if err != nil {
			s.log.Error().Err(err).Str("key", row.Key).Msg("settings: failed to decrypt stored value")
			return "", apperror.InternalError(err)
		}
		return plaintext, nil
	}
	return row.Value, nil
}
