package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chartschool/chartschool/internal/config"
	"go.uber.org/zap"
)

// Client is the thin wrapper around the TradingView access management API.
// Single-attempt semantics: no retries at this layer, all resilience is the
// caller's decision.
type Client interface {
	Grant(ctx context.Context, username string, pineIDs []string, duration string) (BatchResult, error)
	Revoke(ctx context.Context, username string, pineIDs []string) (BatchResult, error)
	Query(ctx context.Context, username string) ([]EntitlementState, error)
}

var ErrNotConfigured = errors.New("gateway_not_configured")

type httpClient struct {
	baseURL   string
	sessionID string
	signature string
	client    *http.Client
	log       *zap.Logger
}

// New builds the gateway client from explicit configuration. The base URL
// and credentials are constructor parameters so tests can point at a fake.
func New(cfg config.Config, log *zap.Logger) Client {
	return &httpClient{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.TVGatewayBaseURL), "/"),
		sessionID: strings.TrimSpace(cfg.TVGatewaySessionID),
		signature: strings.TrimSpace(cfg.TVGatewaySignature),
		client:    &http.Client{Timeout: cfg.TVGatewayTimeout},
		log:       log.Named("gateway"),
	}
}

type accessRequest struct {
	PineIDs  []string `json:"pine_ids"`
	Duration string   `json:"duration,omitempty"`
}

type accessResponse struct {
	PineID     string `json:"pine_id"`
	Status     string `json:"status"`
	Expiration string `json:"expiration,omitempty"`
	Error      string `json:"error,omitempty"`
}

const statusSuccess = "Success"

func (c *httpClient) Grant(ctx context.Context, username string, pineIDs []string, duration string) (BatchResult, error) {
	rows, err := c.doAccess(ctx, http.MethodPost, "grant", username, accessRequest{PineIDs: pineIDs, Duration: duration})
	if err != nil {
		return nil, err
	}
	return c.toBatchResult("grant", username, pineIDs, rows), nil
}

func (c *httpClient) Revoke(ctx context.Context, username string, pineIDs []string) (BatchResult, error) {
	rows, err := c.doAccess(ctx, http.MethodDelete, "revoke", username, accessRequest{PineIDs: pineIDs})
	if err != nil {
		return nil, err
	}
	return c.toBatchResult("revoke", username, pineIDs, rows), nil
}

func (c *httpClient) Query(ctx context.Context, username string) ([]EntitlementState, error) {
	rows, err := c.doAccess(ctx, http.MethodGet, "query", username, accessRequest{})
	if err != nil {
		return nil, err
	}

	states := make([]EntitlementState, 0, len(rows))
	for _, row := range rows {
		raw, _ := json.Marshal(row)
		states = append(states, EntitlementState{
			PineID:      row.PineID,
			Active:      row.Status == statusSuccess,
			Expiration:  parseExpiration(row.Expiration),
			RawResponse: raw,
		})
	}
	return states, nil
}

func (c *httpClient) doAccess(ctx context.Context, method, op, username string, body accessRequest) ([]accessResponse, error) {
	if c.baseURL == "" {
		return nil, &TransportError{Op: op, Username: username, Err: ErrNotConfigured}
	}

	var reader io.Reader
	if method != http.MethodGet {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Op: op, Username: username, Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := c.baseURL + "/api/access/" + url.PathEscape(username)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Username: username, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.sessionID})
	}
	if c.signature != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid_sign", Value: c.signature})
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observeCall(op, "transport_error")
		return nil, &TransportError{Op: op, Username: username, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		observeCall(op, "transport_error")
		return nil, &TransportError{Op: op, Username: username, StatusCode: resp.StatusCode, Err: err}
	}

	var rows []accessResponse
	if err := json.Unmarshal(payload, &rows); err != nil {
		// A non-2xx with an unparsable body is a transport failure, not a
		// per-key verdict.
		observeCall(op, "transport_error")
		return nil, &TransportError{
			Op:         op,
			Username:   username,
			StatusCode: resp.StatusCode,
			Err:        errors.New("unparsable gateway response: " + truncate(string(payload), 256)),
		}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		observeCall(op, "transport_error")
		return nil, &TransportError{
			Op:         op,
			Username:   username,
			StatusCode: resp.StatusCode,
			Err:        errors.New("gateway rejected request"),
		}
	}

	observeCall(op, "ok")
	c.log.Debug("gateway call completed",
		zap.String("op", op),
		zap.String("username", username),
		zap.Int("keys", len(rows)),
		zap.Duration("took", time.Since(started)),
	)
	return rows, nil
}

func (c *httpClient) toBatchResult(op, username string, requested []string, rows []accessResponse) BatchResult {
	byKey := make(map[string]accessResponse, len(rows))
	for _, row := range rows {
		byKey[row.PineID] = row
	}

	result := make(BatchResult, 0, len(requested))
	for _, pineID := range requested {
		row, ok := byKey[pineID]
		if !ok {
			observeKey(op, "missing")
			result = append(result, KeyOutcome{
				PineID:    pineID,
				Succeeded: false,
				ErrorText: "no response entry for key",
			})
			continue
		}

		raw, _ := json.Marshal(row)
		outcome := KeyOutcome{
			PineID:      pineID,
			Succeeded:   row.Status == statusSuccess,
			RawResponse: raw,
			Expiration:  parseExpiration(row.Expiration),
		}
		if !outcome.Succeeded {
			outcome.ErrorText = row.Error
			if outcome.ErrorText == "" {
				outcome.ErrorText = row.Status
			}
			observeKey(op, "failed")
		} else {
			observeKey(op, "succeeded")
		}
		result = append(result, outcome)
	}
	return result
}

func parseExpiration(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
