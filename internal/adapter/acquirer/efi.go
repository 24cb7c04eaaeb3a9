package acquirer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	efiProductionURL = "https://pix.api.efipay.com.br"
	efiSandboxURL    = "https://pix-h.api.efipay.com.br"

	// Tokens are refreshed proactively this far before expiry so a charge
	// never pays the latency of a synchronous token round trip.
	efiTokenRefreshMargin = 5 * time.Minute
	efiRefreshLockTTL     = 30 * time.Second

	efiMinAmount = 1 // centavos

	efiRequestTimeout = 15 * time.Second
)

// efiAdapter talks to the efi PIX API: OAuth2 client-credentials over
// mutually-authenticated TLS, with the bearer token cached durably and shared
// across instances.
type efiAdapter struct {
	creds  *CredentialProvider
	tokens ports.TokenCache
	log    zerolog.Logger

	// overridable in tests
	baseURL   string
	sandbox   string
	newClient func(c *EfiCredentials) (HTTPClient, error)
}

// NewEfi creates the efi adapter.
func NewEfi(creds *CredentialProvider, tokens ports.TokenCache, log zerolog.Logger) ports.Adapter {
	return &efiAdapter{
		creds:   creds,
		tokens:  tokens,
		log:     log,
		baseURL: efiProductionURL,
		sandbox: efiSandboxURL,
		newClient: func(c *EfiCredentials) (HTTPClient, error) {
			return c.MTLSClient(efiRequestTimeout)
		},
	}
}

func (a *efiAdapter) Name() domain.Acquirer { return domain.AcquirerEfi }

func (a *efiAdapter) MinAmount() int64 { return efiMinAmount }

func (a *efiAdapter) endpoint(c *EfiCredentials) string {
	if c.Environment == "sandbox" {
		return a.sandbox
	}
	return a.baseURL
}

type efiTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// token returns a usable bearer token, serving from the durable cache when
// possible. Refresh is serialized with a short lock; a loser of the lock race
// keeps using the still-valid token instead of hammering the token endpoint,
// which efi rate-limits aggressively.
func (a *efiAdapter) token(ctx context.Context, client HTTPClient, c *EfiCredentials) (string, error) {
	cached, err := a.tokens.Get(ctx, domain.AcquirerEfi)
	if err != nil {
		a.log.Warn().Err(err).Msg("efi: token cache read failed, fetching fresh token")
	}
	if cached != nil && cached.Valid(efiTokenRefreshMargin) {
		return cached.AccessToken, nil
	}

	if cached != nil && cached.Valid(0) {
		locked, lockErr := a.tokens.AcquireRefreshLock(ctx, domain.AcquirerEfi, efiRefreshLockTTL)
		if lockErr != nil || !locked {
			return cached.AccessToken, nil
		}
	}

	fresh, err := a.requestToken(ctx, client, c)
	if err != nil {
		if cached != nil && cached.Valid(0) {
			a.log.Warn().Err(err).Msg("efi: token refresh failed, reusing cached token")
			return cached.AccessToken, nil
		}
		return "", err
	}
	if err := a.tokens.Set(ctx, domain.AcquirerEfi, fresh); err != nil {
		a.log.Warn().Err(err).Msg("efi: token cache write failed")
	}
	return fresh.AccessToken, nil
}

func (a *efiAdapter) requestToken(ctx context.Context, client HTTPClient, c *EfiCredentials) (*ports.BearerToken, error) {
	req, err := newJSONRequest(ctx, http.MethodPost, a.endpoint(c)+"/oauth/token", map[string]string{
		"grant_type": "client_credentials",
	})
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)

	var tok efiTokenResponse
	if err := doJSON(client, string(domain.AcquirerEfi), req, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, apperror.ErrUpstream(string(domain.AcquirerEfi), fmt.Errorf("token response missing access_token"))
	}
	return &ports.BearerToken{
		AccessToken: tok.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}, nil
}

type efiCobRequest struct {
	Calendario struct {
		Expiracao int64 `json:"expiracao"`
	} `json:"calendario"`
	Devedor *struct {
		Nome string `json:"nome"`
	} `json:"devedor,omitempty"`
	Valor struct {
		Original string `json:"original"`
	} `json:"valor"`
	Chave              string `json:"chave"`
	SolicitacaoPagador string `json:"solicitacaoPagador,omitempty"`
}

type efiCobResponse struct {
	TxID       string `json:"txid"`
	Status     string `json:"status"`
	Calendario struct {
		Criacao   time.Time `json:"criacao"`
		Expiracao int64     `json:"expiracao"`
	} `json:"calendario"`
	Valor struct {
		Original string `json:"original"`
	} `json:"valor"`
	Loc struct {
		ID int64 `json:"id"`
	} `json:"loc"`
	Pix []struct {
		EndToEndID string    `json:"endToEndId"`
		Horario    time.Time `json:"horario"`
	} `json:"pix"`
}

type efiQRCodeResponse struct {
	QRCode       string `json:"qrcode"`
	ImagemQRCode string `json:"imagemQrcode"`
}

func (a *efiAdapter) CreateCharge(ctx context.Context, in ports.CreateChargeInput) (*ports.ChargeResult, error) {
	c, err := a.creds.Efi(ctx, in.MerchantID)
	if err != nil {
		return nil, err
	}
	client, err := a.newClient(c)
	if err != nil {
		return nil, apperror.ErrConfigMissing(string(domain.AcquirerEfi), domain.SettingEfiCertificate)
	}
	token, err := a.token(ctx, client, c)
	if err != nil {
		return nil, err
	}

	var cob efiCobRequest
	cob.Calendario.Expiracao = int64(in.ExpiresIn.Seconds())
	cob.Valor.Original = centsToDecimal(in.Amount)
	cob.Chave = c.PixKey
	cob.SolicitacaoPagador = in.Description
	if in.PayerName != "" {
		cob.Devedor = &struct {
			Nome string `json:"nome"`
		}{Nome: in.PayerName}
	}

	req, err := newJSONRequest(ctx, http.MethodPost, a.endpoint(c)+"/v2/cob", cob)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var created efiCobResponse
	if err := doJSON(client, string(domain.AcquirerEfi), req, &created); err != nil {
		return nil, err
	}

	qrReq, err := newJSONRequest(ctx, http.MethodGet, fmt.Sprintf("%s/v2/loc/%d/qrcode", a.endpoint(c), created.Loc.ID), nil)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	qrReq.Header.Set("Authorization", "Bearer "+token)

	var qr efiQRCodeResponse
	if err := doJSON(client, string(domain.AcquirerEfi), qrReq, &qr); err != nil {
		return nil, err
	}

	return &ports.ChargeResult{
		ExternalID: created.TxID,
		PixCode:    qr.QRCode,
		QRPayload:  qr.ImagemQRCode,
		ExpiresAt:  time.Now().Add(in.ExpiresIn),
	}, nil
}

// mapEfiStatus translates the cob lifecycle into the internal vocabulary.
// Removals by either side count as expiry; efi has no refund state on the cob
// itself.
func mapEfiStatus(s string) (domain.TransactionStatus, bool) {
	switch s {
	case "ATIVA":
		return domain.TransactionStatusGenerated, true
	case "CONCLUIDA":
		return domain.TransactionStatusPaid, true
	case "REMOVIDA_PELO_USUARIO_RECEBEDOR", "REMOVIDA_PELO_PSP":
		return domain.TransactionStatusExpired, true
	}
	return "", false
}

func (a *efiAdapter) QueryStatus(ctx context.Context, merchantID uuid.UUID, externalID string) (*ports.StatusResult, error) {
	c, err := a.creds.Efi(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	client, err := a.newClient(c)
	if err != nil {
		return nil, apperror.ErrConfigMissing(string(domain.AcquirerEfi), domain.SettingEfiCertificate)
	}
	token, err := a.token(ctx, client, c)
	if err != nil {
		return nil, err
	}

	req, err := newJSONRequest(ctx, http.MethodGet, a.endpoint(c)+"/v2/cob/"+externalID, nil)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var cob efiCobResponse
	if err := doJSON(client, string(domain.AcquirerEfi), req, &cob); err != nil {
		return nil, err
	}
	return efiStatusResult(&cob)
}

func efiStatusResult(cob *efiCobResponse) (*ports.StatusResult, error) {
	status, ok := mapEfiStatus(cob.Status)
	if !ok {
		return nil, apperror.ErrUpstream(string(domain.AcquirerEfi), fmt.Errorf("unknown charge status %q", cob.Status))
	}
	amount, err := decimalToCents(cob.Valor.Original)
	if err != nil && cob.Valor.Original != "" {
		return nil, apperror.ErrUpstream(string(domain.AcquirerEfi), err)
	}
	result := &ports.StatusResult{ExternalID: cob.TxID, Status: status, Amount: amount}
	if status == domain.TransactionStatusPaid && len(cob.Pix) > 0 {
		paidAt := cob.Pix[0].Horario
		result.PaidAt = &paidAt
	}
	return result, nil
}

// AuthenticateWebhook enforces the configured source-IP allow-list. With no
// list configured the callback is accepted unvalidated, which the ingestor
// logs as permissive traffic.
func (a *efiAdapter) AuthenticateWebhook(ctx context.Context, clientIP string, headers http.Header, body []byte) (bool, error) {
	allowed, err := a.creds.settings.Resolve(ctx, domain.SettingEfiWebhookIPs, uuid.Nil)
	if err != nil {
		return false, err
	}
	if allowed == "" {
		return false, nil
	}
	for _, ip := range strings.Split(allowed, ",") {
		if strings.TrimSpace(ip) == clientIP {
			return true, nil
		}
	}
	return false, apperror.ErrWebhookBlocked(string(domain.AcquirerEfi))
}

type efiWebhookPayload struct {
	Pix []struct {
		TxID    string    `json:"txid"`
		Horario time.Time `json:"horario"`
	} `json:"pix"`
}

// ParseWebhook unpacks efi's batched confirmation payload. Every entry is a
// settlement, so every event is a PAID transition.
func (a *efiAdapter) ParseWebhook(ctx context.Context, body []byte) ([]ports.WebhookEvent, error) {
	var payload efiWebhookPayload
	if err := unmarshalWebhook(body, &payload); err != nil {
		return nil, err
	}
	events := make([]ports.WebhookEvent, 0, len(payload.Pix))
	for _, pix := range payload.Pix {
		if pix.TxID == "" {
			continue
		}
		paidAt := pix.Horario
		events = append(events, ports.WebhookEvent{
			ExternalID: pix.TxID,
			EventType:  domain.TransactionStatusPaid,
			PaidAt:     &paidAt,
		})
	}
	return events, nil
}

type efiCobListResponse struct {
	Cobs []efiCobResponse `json:"cobs"`
}

// ListTransactions implements the date-range capability used by
// reconciliation.
func (a *efiAdapter) ListTransactions(ctx context.Context, merchantID uuid.UUID, start, end time.Time) ([]ports.StatusResult, error) {
	c, err := a.creds.Efi(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	client, err := a.newClient(c)
	if err != nil {
		return nil, apperror.ErrConfigMissing(string(domain.AcquirerEfi), domain.SettingEfiCertificate)
	}
	token, err := a.token(ctx, client, c)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/cob?inicio=%s&fim=%s",
		a.endpoint(c), start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	req, err := newJSONRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var list efiCobListResponse
	if err := doJSON(client, string(domain.AcquirerEfi), req, &list); err != nil {
		return nil, err
	}

	results := make([]ports.StatusResult, 0, len(list.Cobs))
	for i := range list.Cobs {
		r, err := efiStatusResult(&list.Cobs[i])
		if err != nil {
			a.log.Warn().Str("txid", list.Cobs[i].TxID).Str("status", list.Cobs[i].Status).
				Msg("efi: skipping charge with unknown status in listing")
			continue
		}
		results = append(results, *r)
	}
	return results, nil
}
