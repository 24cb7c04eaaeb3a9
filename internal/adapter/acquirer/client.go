package acquirer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"pix-gateway/pkg/apperror"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxResponseBody caps acquirer response reads. PIX payloads are small; a
// misbehaving upstream must not exhaust memory.
const maxResponseBody = 1 << 20

// doJSON executes an acquirer API call and decodes the JSON response into out.
// Non-2xx responses become upstream errors carrying the status and a body
// excerpt. out may be nil when the caller only cares about success.
func doJSON(client HTTPClient, acquirer string, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return apperror.ErrUpstream(acquirer, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return apperror.ErrUpstream(acquirer, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode == http.StatusNotFound {
		return apperror.ErrNotFound("charge")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := body
		if len(excerpt) > 512 {
			excerpt = excerpt[:512]
		}
		return apperror.ErrUpstream(acquirer, fmt.Errorf("status %d: %s", resp.StatusCode, excerpt))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperror.ErrUpstream(acquirer, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// newJSONRequest builds a request with a JSON body, or without one when
// payload is nil.
func newJSONRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// unmarshalWebhook decodes a raw callback body, reporting malformed payloads
// as validation errors so the HTTP layer answers 400 rather than 502.
func unmarshalWebhook(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return apperror.Validation("malformed webhook payload")
	}
	return nil
}

// centsToDecimal renders centavos as the "1234.56" decimal string PIX APIs
// that refuse integer amounts expect.
func centsToDecimal(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// decimalToCents parses a "1234.56" style amount back into centavos.
func decimalToCents(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return int64(f*100 + 0.5), nil
}
