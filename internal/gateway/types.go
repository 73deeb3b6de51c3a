package gateway

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire-level duration codes understood by the access gateway.
const (
	DurationSevenDays = "7D"
	DurationThirtyDay = "30D"
	DurationOneYear   = "1Y"
	DurationLifetime  = "1L"
)

// KeyOutcome is the per-key verdict of a grant or revoke call. The gateway
// never collapses a partial success into a single result; callers
// demultiplex outcomes themselves.
type KeyOutcome struct {
	PineID      string          `json:"pine_id"`
	Succeeded   bool            `json:"succeeded"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
	ErrorText   string          `json:"error_text,omitempty"`
	// Expiration is the platform's own reported expiry, when present.
	Expiration *time.Time `json:"expiration,omitempty"`
}

type BatchResult []KeyOutcome

func (b BatchResult) Outcome(pineID string) (KeyOutcome, bool) {
	for _, o := range b {
		if o.PineID == pineID {
			return o, true
		}
	}
	return KeyOutcome{}, false
}

// EntitlementState is the platform's current view of one key for a user,
// as returned by Query. Authoritative for expiry.
type EntitlementState struct {
	PineID      string          `json:"pine_id"`
	Active      bool            `json:"active"`
	Expiration  *time.Time      `json:"expiration,omitempty"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
}

// TransportError covers the whole call: network failure, timeout, or a
// non-2xx response with an unparsable body. It is the only failure class
// eligible for manual re-invocation; per-key failures live inside
// BatchResult instead.
type TransportError struct {
	Op         string
	Username   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway %s for %q: status %d: %v", e.Op, e.Username, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s for %q: %v", e.Op, e.Username, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
