package domain

import "github.com/google/uuid"

// Well-known setting keys. Credential keys are resolved field by field; a
// merchant may override a single field while inheriting the rest from the
// platform tier.
const (
	SettingPreferredAcquirer = "pix_acquirer"
	SettingFailoverEnabled   = "pix_failover_enabled"
	SettingFallbackAcquirers = "pix_fallback_acquirers"
	SettingFeePercent        = "fee_percent"
	SettingFeeFixed          = "fee_fixed"
	SettingNotifyURL         = "notify_url"
	SettingNotifySecret      = "notify_secret"
	SettingEnvironment       = "environment" // production | sandbox

	SettingEfiClientID       = "efi_client_id"
	SettingEfiClientSecret   = "efi_client_secret"
	SettingEfiCertificate    = "efi_certificate"
	SettingEfiCertificateKey = "efi_certificate_key"
	SettingEfiPixKey         = "efi_pix_key"
	SettingEfiWebhookIPs     = "efi_webhook_allowed_ips"

	SettingWooviAppID         = "woovi_app_id"
	SettingWooviWebhookSecret = "woovi_webhook_secret"

	SettingMercadoPagoAccessToken = "mercadopago_access_token"
)

// AcquirerEnabledKey returns the setting key gating probes and routing for an
// acquirer, e.g. "pix_efi_enabled". Anything but "false" means enabled.
func AcquirerEnabledKey(a Acquirer) string {
	return "pix_" + string(a) + "_enabled"
}

// Setting is one configuration row. MerchantID nil means platform-wide.
// Encrypted rows hold AES-256-GCM ciphertext (credential material at rest).
type Setting struct {
	MerchantID *uuid.UUID `json:"merchant_id,omitempty"`
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Encrypted  bool       `json:"encrypted"`
}
