package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chartschool/chartschool/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.Config{
		TVGatewayBaseURL:   srv.URL,
		TVGatewaySessionID: "sess-123",
		TVGatewaySignature: "sig-456",
		TVGatewayTimeout:   5 * time.Second,
	}, zap.NewNop())
}

func TestGrantDemuxesPerKeyOutcomes(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody accessRequest
	var gotCookies []*http.Cookie

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotCookies = r.Cookies()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode([]accessResponse{
			{PineID: "PUB;alpha", Status: "Success", Expiration: "2026-10-01T00:00:00Z"},
			{PineID: "PUB;beta", Status: "Failure", Error: "script not published"},
		})
	})

	result, err := client.Grant(context.Background(), "trader_jane", []string{"PUB;alpha", "PUB;beta", "PUB;gamma"}, "30D")
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/access/trader_jane", gotPath)
	assert.Equal(t, []string{"PUB;alpha", "PUB;beta", "PUB;gamma"}, gotBody.PineIDs)
	assert.Equal(t, "30D", gotBody.Duration)

	cookieValues := map[string]string{}
	for _, c := range gotCookies {
		cookieValues[c.Name] = c.Value
	}
	assert.Equal(t, "sess-123", cookieValues["sessionid"])
	assert.Equal(t, "sig-456", cookieValues["sessionid_sign"])

	ok, found := result.Outcome("PUB;alpha")
	require.True(t, found)
	assert.True(t, ok.Succeeded)
	require.NotNil(t, ok.Expiration)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), ok.Expiration.UTC())
	assert.NotEmpty(t, ok.RawResponse)

	failed, found := result.Outcome("PUB;beta")
	require.True(t, found)
	assert.False(t, failed.Succeeded)
	assert.Equal(t, "script not published", failed.ErrorText)

	// A key the gateway never answered for is a failure, not a silent drop.
	missing, found := result.Outcome("PUB;gamma")
	require.True(t, found)
	assert.False(t, missing.Succeeded)
	assert.Equal(t, "no response entry for key", missing.ErrorText)
}

func TestRevokeUsesDelete(t *testing.T) {
	var gotMethod string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewEncoder(w).Encode([]accessResponse{
			{PineID: "PUB;alpha", Status: "Success"},
		})
	})

	result, err := client.Revoke(context.Background(), "trader_jane", []string{"PUB;alpha"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	require.Len(t, result, 1)
	assert.True(t, result[0].Succeeded)
	assert.Nil(t, result[0].Expiration)
}

func TestQueryMapsEntitlementStates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode([]accessResponse{
			{PineID: "PUB;alpha", Status: "Success", Expiration: "2026-12-31"},
			{PineID: "PUB;beta", Status: "Expired"},
		})
	})

	states, err := client.Query(context.Background(), "trader_jane")
	require.NoError(t, err)
	require.Len(t, states, 2)

	assert.True(t, states[0].Active)
	require.NotNil(t, states[0].Expiration)
	assert.Equal(t, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), states[0].Expiration.UTC())

	assert.False(t, states[1].Active)
	assert.Nil(t, states[1].Expiration)
}

func TestNon2xxIsTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"session expired"}`))
	})

	_, err := client.Grant(context.Background(), "trader_jane", []string{"PUB;alpha"}, "1L")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusUnauthorized, transportErr.StatusCode)
	assert.Equal(t, "grant", transportErr.Op)
	assert.Equal(t, "trader_jane", transportErr.Username)
}

func TestUnparsableBodyIsTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway timeout</html>"))
	})

	_, err := client.Query(context.Background(), "trader_jane")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, transportErr.Error(), "unparsable gateway response")
}

func TestConnectionRefusedIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := New(config.Config{
		TVGatewayBaseURL: srv.URL,
		TVGatewayTimeout: time.Second,
	}, zap.NewNop())

	_, err := client.Revoke(context.Background(), "trader_jane", []string{"PUB;alpha"})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Zero(t, transportErr.StatusCode)
}

func TestMissingBaseURL(t *testing.T) {
	client := New(config.Config{}, zap.NewNop())

	_, err := client.Query(context.Background(), "trader_jane")
	require.ErrorIs(t, err, ErrNotConfigured)
}
