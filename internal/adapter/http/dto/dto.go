package dto

// ChargeRequest is the request body for charge creation.
type ChargeRequest struct {
	MerchantID  string `json:"merchant_id" binding:"required,uuid"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	PayerName   string `json:"payer_name" binding:"max=100"`
	Description string `json:"description" binding:"max=200"`
}

// ChargeResponse is the response body for a freshly created charge.
type ChargeResponse struct {
	TransactionID string `json:"transaction_id"`
	ExternalID    string `json:"external_id"`
	Acquirer      string `json:"acquirer"`
	PixCode       string `json:"pix_code"`
	QRPayload     string `json:"qr_payload"`
	ExpiresAt     string `json:"expires_at"`
}

// TransactionResponse is the ledger view of a charge.
type TransactionResponse struct {
	TransactionID string  `json:"transaction_id"`
	ExternalID    string  `json:"external_id"`
	Acquirer      string  `json:"acquirer"`
	Status        string  `json:"status"`
	Amount        int64   `json:"amount"`
	NetAmount     int64   `json:"net_amount"`
	CreatedAt     string  `json:"created_at"`
	PaidAt        *string `json:"paid_at,omitempty"`
}

// WebhookAck is the acknowledgement body for acquirer callbacks. The counters
// are informational; acquirers only look at the status code.
type WebhookAck struct {
	Received   bool `json:"received"`
	Applied    int  `json:"applied"`
	Duplicates int  `json:"duplicates"`
	Unmatched  int  `json:"unmatched"`
}

// ReconciliationRequest is the request body for the admin reconciliation
// endpoint. Exactly one of external_ids or the date range must be set.
type ReconciliationRequest struct {
	MerchantID  string   `json:"merchant_id" binding:"required,uuid"`
	Acquirer    string   `json:"acquirer" binding:"omitempty,oneof=efi woovi mercadopago"`
	ExternalIDs []string `json:"external_ids" binding:"omitempty,max=500,dive,max=100"`
	StartDate   string   `json:"start_date" binding:"omitempty"`
	EndDate     string   `json:"end_date" binding:"omitempty"`
}

// SettingUpsertRequest is the request body for the admin settings endpoint.
// MerchantID empty means a platform-wide row.
type SettingUpsertRequest struct {
	MerchantID string `json:"merchant_id" binding:"omitempty,uuid"`
	Key        string `json:"key" binding:"required,max=100,safe_key"`
	Value      string `json:"value" binding:"required"`
}

// SettingUpsertResponse echoes the stored row without its value; secret
// values never travel back to the caller.
type SettingUpsertResponse struct {
	MerchantID string `json:"merchant_id,omitempty"`
	Key        string `json:"key"`
	Encrypted  bool   `json:"encrypted"`
}

// AcquirerHealthResponse is one row of the health snapshot.
type AcquirerHealthResponse struct {
	Acquirer             string  `json:"acquirer"`
	IsHealthy            bool    `json:"is_healthy"`
	ConsecutiveSuccesses int     `json:"consecutive_successes"`
	ConsecutiveFailures  int     `json:"consecutive_failures"`
	AvgResponseTimeMs    int64   `json:"avg_response_time_ms"`
	LastCheckAt          string  `json:"last_check_at"`
	LastErrorMessage     string  `json:"last_error_message,omitempty"`
	LastSuccessAt        *string `json:"last_success_at,omitempty"`
	LastFailureAt        *string `json:"last_failure_at,omitempty"`
}

// MonitoringEventResponse is one row of the recent-events listing.
type MonitoringEventResponse struct {
	Acquirer       string `json:"acquirer"`
	EventType      string `json:"event_type"`
	ErrorMessage   string `json:"error_message,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	CreatedAt      string `json:"created_at"`
}
