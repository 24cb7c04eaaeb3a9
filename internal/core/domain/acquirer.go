package domain

import "time"

// Acquirer identifies an external PIX payment processor.
type Acquirer string

const (
	AcquirerEfi         Acquirer = "efi"
	AcquirerWoovi       Acquirer = "woovi"
	AcquirerMercadoPago Acquirer = "mercadopago"
)

// IsValid reports whether a is a known acquirer.
func (a Acquirer) IsValid() bool {
	switch a {
	case AcquirerEfi, AcquirerWoovi, AcquirerMercadoPago:
		return true
	}
	return false
}

func (a Acquirer) String() string { return string(a) }

// ewmaWeight is the weight of the previous average when folding in a new
// probe latency (70% old, 30% new).
const ewmaWeight = 0.7

// AcquirerHealth is the single current-state row per acquirer: a gauge, not a
// log. Created lazily on first probe and only ever overwritten in place.
type AcquirerHealth struct {
	Acquirer             Acquirer   `json:"acquirer"`
	IsHealthy            bool       `json:"is_healthy"`
	ConsecutiveSuccesses int        `json:"consecutive_successes"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	AvgResponseTimeMs    int64      `json:"avg_response_time_ms"`
	LastCheckAt          time.Time  `json:"last_check_at"`
	LastSuccessAt        *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt        *time.Time `json:"last_failure_at,omitempty"`
	LastErrorMessage     string     `json:"last_error_message,omitempty"`
}

// RecordSuccess applies a successful probe. A single success recovers the
// acquirer regardless of the preceding failure streak; the asymmetry is
// intentional so a flapping acquirer serves traffic again as soon as it
// responds.
func (h *AcquirerHealth) RecordSuccess(at time.Time, responseTime time.Duration) {
	h.IsHealthy = true
	h.ConsecutiveSuccesses++
	h.ConsecutiveFailures = 0
	h.LastCheckAt = at
	h.LastSuccessAt = &at
	h.LastErrorMessage = ""
	h.foldLatency(responseTime)
}

// RecordFailure applies a failed or timed-out probe.
func (h *AcquirerHealth) RecordFailure(at time.Time, responseTime time.Duration, errMsg string) {
	h.IsHealthy = false
	h.ConsecutiveFailures++
	h.ConsecutiveSuccesses = 0
	h.LastCheckAt = at
	h.LastFailureAt = &at
	h.LastErrorMessage = errMsg
	h.foldLatency(responseTime)
}

func (h *AcquirerHealth) foldLatency(responseTime time.Duration) {
	ms := responseTime.Milliseconds()
	if h.AvgResponseTimeMs == 0 {
		h.AvgResponseTimeMs = ms
		return
	}
	h.AvgResponseTimeMs = int64(float64(h.AvgResponseTimeMs)*ewmaWeight + float64(ms)*(1-ewmaWeight))
}

// MonitoringEventType classifies entries in the append-only monitoring log.
type MonitoringEventType string

const (
	EventSuccess              MonitoringEventType = "success"
	EventFailure              MonitoringEventType = "failure"
	EventRetry                MonitoringEventType = "retry"
	EventWebhookReceived      MonitoringEventType = "webhook_received"
	EventWebhookAuthenticated MonitoringEventType = "webhook_authenticated"
	EventWebhookBlocked       MonitoringEventType = "webhook_blocked"
)

// MonitoringEvent is one row of the append-only monitoring log. Write-only
// for every component except the retention job.
type MonitoringEvent struct {
	ID             int64               `json:"id"`
	Acquirer       Acquirer            `json:"acquirer"`
	EventType      MonitoringEventType `json:"event_type"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	ResponseTimeMs int64               `json:"response_time_ms"`
	CreatedAt      time.Time           `json:"created_at"`
}
