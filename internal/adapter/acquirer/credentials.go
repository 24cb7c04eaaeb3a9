package acquirer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EfiCredentials is the resolved efi bundle. Certificate material is already
// normalized; Environment selects the production or sandbox endpoint.
type EfiCredentials struct {
	ClientID       string
	ClientSecret   string
	Certificate    string
	CertificateKey string
	PixKey         string
	Environment    string
}

// WooviCredentials is the resolved woovi bundle. WebhookSecret may be empty;
// an empty secret disables signature validation for inbound callbacks.
type WooviCredentials struct {
	AppID         string
	WebhookSecret string
}

// MercadoPagoCredentials is the resolved mercadopago bundle.
type MercadoPagoCredentials struct {
	AccessToken string
}

// CredentialProvider assembles per-acquirer credential bundles from the
// settings resolver. Each field resolves independently, so a merchant can
// override a single field and inherit the rest from the platform tier.
type CredentialProvider struct {
	settings ports.SettingsResolver
	log      zerolog.Logger
}

// NewCredentialProvider creates a credential provider backed by the given
// settings resolver.
func NewCredentialProvider(settings ports.SettingsResolver, log zerolog.Logger) *CredentialProvider {
	return &CredentialProvider{settings: settings, log: log}
}

// Efi resolves the efi bundle for a merchant. All fields except the
// environment are required.
func (p *CredentialProvider) Efi(ctx context.Context, merchantID uuid.UUID) (*EfiCredentials, error) {
	clientID, err := p.settings.ResolveRequired(ctx, domain.SettingEfiClientID, merchantID, domain.AcquirerEfi)
	if err != nil {
		return nil, err
	}
	clientSecret, err := p.settings.ResolveRequired(ctx, domain.SettingEfiClientSecret, merchantID, domain.AcquirerEfi)
	if err != nil {
		return nil, err
	}
	certificate, err := p.settings.ResolveRequired(ctx, domain.SettingEfiCertificate, merchantID, domain.AcquirerEfi)
	if err != nil {
		return nil, err
	}
	certificateKey, err := p.settings.ResolveRequired(ctx, domain.SettingEfiCertificateKey, merchantID, domain.AcquirerEfi)
	if err != nil {
		return nil, err
	}
	pixKey, err := p.settings.ResolveRequired(ctx, domain.SettingEfiPixKey, merchantID, domain.AcquirerEfi)
	if err != nil {
		return nil, err
	}
	environment, err := p.settings.Resolve(ctx, domain.SettingEnvironment, merchantID)
	if err != nil {
		return nil, err
	}
	if environment == "" {
		environment = "production"
	}

	return &EfiCredentials{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		Certificate:    NormalizePEM(certificate),
		CertificateKey: NormalizePEM(certificateKey),
		PixKey:         pixKey,
		Environment:    environment,
	}, nil
}

// Woovi resolves the woovi bundle for a merchant.
func (p *CredentialProvider) Woovi(ctx context.Context, merchantID uuid.UUID) (*WooviCredentials, error) {
	appID, err := p.settings.ResolveRequired(ctx, domain.SettingWooviAppID, merchantID, domain.AcquirerWoovi)
	if err != nil {
		return nil, err
	}
	secret, err := p.settings.Resolve(ctx, domain.SettingWooviWebhookSecret, merchantID)
	if err != nil {
		return nil, err
	}
	return &WooviCredentials{AppID: appID, WebhookSecret: secret}, nil
}

// MercadoPago resolves the mercadopago bundle for a merchant.
func (p *CredentialProvider) MercadoPago(ctx context.Context, merchantID uuid.UUID) (*MercadoPagoCredentials, error) {
	token, err := p.settings.ResolveRequired(ctx, domain.SettingMercadoPagoAccessToken, merchantID, domain.AcquirerMercadoPago)
	if err != nil {
		return nil, err
	}
	return &MercadoPagoCredentials{AccessToken: token}, nil
}

// MTLSClient builds an HTTP client presenting the bundle's certificate pair.
// Fails with a configuration error when the PEM material does not parse, so
// the caller surfaces it as a merchant setup problem rather than a transient
// upstream one.
func (c *EfiCredentials) MTLSClient(timeout time.Duration) (*http.Client, error) {
	pair, err := tls.X509KeyPair([]byte(c.Certificate), []byte(c.CertificateKey))
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{pair},
			MinVersion:   tls.VersionTLS12,
		},
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// pemLineWidth is the canonical base64 wrapping used by RFC 7468 encoders.
const pemLineWidth = 64

var pemBlockPattern = regexp.MustCompile(`(?s)-----BEGIN ([A-Z0-9 ]+)-----(.*?)-----END ([A-Z0-9 ]+)-----`)

// NormalizePEM rewrites PEM material into canonical form: literal "\n" escape
// sequences become real newlines and each block's base64 body is rewrapped at
// 64 columns. Credential rows arrive from env files, dashboards and API
// payloads, and any of those can flatten or over-wrap the body; crypto/tls
// rejects some of the mangled shapes.
func NormalizePEM(raw string) string {
	raw = strings.ReplaceAll(raw, "\\n", "\n")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	matches := pemBlockPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var out strings.Builder
	for _, m := range matches {
		label, body := m[1], strings.Join(strings.Fields(m[2]), "")
		out.WriteString("-----BEGIN " + label + "-----\n")
		for len(body) > pemLineWidth {
			out.WriteString(body[:pemLineWidth])
			out.WriteByte('\n')
			body = body[pemLineWidth:]
		}
		if len(body) > 0 {
			out.WriteString(body)
			out.WriteByte('\n')
		}
		out.WriteString("-----END " + label + "-----\n")
	}
	return out.String()
}
