package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/chartschool/chartschool/internal/audit/domain"
	auditrepository "github.com/chartschool/chartschool/internal/audit/repository"
	auditservice "github.com/chartschool/chartschool/internal/audit/service"
	"github.com/chartschool/chartschool/internal/clock"
	"github.com/chartschool/chartschool/internal/entitlement/domain"
	"github.com/chartschool/chartschool/internal/entitlement/repository"
	"github.com/chartschool/chartschool/internal/gateway"
	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
	indicatorrepository "github.com/chartschool/chartschool/internal/indicator/repository"
	indicatorservice "github.com/chartschool/chartschool/internal/indicator/service"
	userdomain "github.com/chartschool/chartschool/internal/user/domain"
	userrepository "github.com/chartschool/chartschool/internal/user/repository"
	userservice "github.com/chartschool/chartschool/internal/user/service"
)

// -- Fake gateway --

type fakeGateway struct {
	grantCalls  int
	revokeCalls int
	lastKeys    []string

	grantFn  func(username string, keys []string, duration string) (gateway.BatchResult, error)
	revokeFn func(username string, keys []string) (gateway.BatchResult, error)
}

func (f *fakeGateway) Grant(_ context.Context, username string, keys []string, duration string) (gateway.BatchResult, error) {
	f.grantCalls++
	f.lastKeys = keys
	return f.grantFn(username, keys, duration)
}

func (f *fakeGateway) Revoke(_ context.Context, username string, keys []string) (gateway.BatchResult, error) {
	f.revokeCalls++
	f.lastKeys = keys
	return f.revokeFn(username, keys)
}

func (f *fakeGateway) Query(context.Context, string) ([]gateway.EntitlementState, error) {
	return nil, nil
}

func successOutcome(key string) gateway.KeyOutcome {
	return gateway.KeyOutcome{PineID: key, Succeeded: true, RawResponse: []byte(`{"status":"Success"}`)}
}

func failedOutcome(key, errText string) gateway.KeyOutcome {
	return gateway.KeyOutcome{PineID: key, Succeeded: false, RawResponse: []byte(`{"status":"Failure"}`), ErrorText: errText}
}

// -- Test env --

type testEnv struct {
	db      *gorm.DB
	genID   *snowflake.Node
	clock   *clock.FakeClock
	gateway *fakeGateway
	svc     domain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&indicatordomain.Indicator{},
		&userdomain.User{},
		&domain.Entitlement{},
		&auditdomain.AuditEntry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	logger := zap.NewNop()

	userSvc := userservice.New(userservice.Params{DB: db, Log: logger, Repo: userrepository.Provide()})
	indicatorSvc := indicatorservice.New(indicatorservice.Params{DB: db, Log: logger, Repo: indicatorrepository.Provide()})
	auditSvc := auditservice.New(auditservice.Params{
		DB: db, Log: logger, GenID: node, Clock: fc,
		Repo: auditrepository.Provide(), UserSvc: userSvc, IndicatorSvc: indicatorSvc,
	})

	gw := &fakeGateway{}
	svc := New(Params{
		DB: db, Log: logger, GenID: node, Clock: fc,
		Repo: repository.Provide(), UserSvc: userSvc, IndicatorSvc: indicatorSvc,
		Gateway: gw, AuditSvc: auditSvc,
	})

	return &testEnv{db: db, genID: node, clock: fc, gateway: gw, svc: svc}
}

func (e *testEnv) seedUser(t *testing.T, username string, onboarded bool) snowflake.ID {
	t.Helper()
	u := userdomain.User{
		ID:                  e.genID.Generate(),
		Email:               "jane@example.com",
		OnboardingCompleted: onboarded,
		CreatedAt:           e.clock.Now(),
		UpdatedAt:           e.clock.Now(),
	}
	if username != "" {
		u.TradingViewUsername = &username
	}
	require.NoError(t, e.db.Create(&u).Error)
	return u.ID
}

func (e *testEnv) seedIndicator(t *testing.T, key, name string, tier indicatordomain.Tier, status indicatordomain.Status) snowflake.ID {
	t.Helper()
	ind := indicatordomain.Indicator{
		ID:          e.genID.Generate(),
		ExternalKey: key,
		Name:        name,
		Tier:        tier,
		Status:      status,
		CreatedAt:   e.clock.Now(),
		UpdatedAt:   e.clock.Now(),
	}
	require.NoError(t, e.db.Create(&ind).Error)
	return ind.ID
}

func (e *testEnv) entitlement(t *testing.T, userID, indicatorID snowflake.ID) *domain.Entitlement {
	t.Helper()
	var ent domain.Entitlement
	err := e.db.Where("user_id = ? AND indicator_id = ?", userID, indicatorID).First(&ent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	require.NoError(t, err)
	return &ent
}

func (e *testEnv) auditEntries(t *testing.T, userID snowflake.ID) []auditdomain.AuditEntry {
	t.Helper()
	var entries []auditdomain.AuditEntry
	require.NoError(t, e.db.Where("user_id = ?", userID).Order("id asc").Find(&entries).Error)
	return entries
}

// -- GrantOne --

func TestGrantOneSuccess(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	indID := env.seedIndicator(t, "PUB;alpha", "Alpha Signals", indicatordomain.TierPremium, indicatordomain.StatusActive)

	env.gateway.grantFn = func(username string, keys []string, duration string) (gateway.BatchResult, error) {
		assert.Equal(t, "trader_jane", username)
		assert.Equal(t, []string{"PUB;alpha"}, keys)
		assert.Equal(t, "30D", duration)
		return gateway.BatchResult{successOutcome("PUB;alpha")}, nil
	}

	ent, err := env.svc.GrantOne(context.Background(), domain.GrantOneRequest{
		UserID:      userID,
		IndicatorID: indID,
		Duration:    domain.DurationThirtyDay,
		Source:      domain.SourceManual,
		ActorID:     "admin@chartschool.io",
	})
	require.NoError(t, err)
	require.NotNil(t, ent)
	assert.Equal(t, domain.StatusActive, ent.Status)
	require.NotNil(t, ent.GrantedAt)
	assert.Equal(t, env.clock.Now(), ent.GrantedAt.UTC())
	require.NotNil(t, ent.ExpiresAt)
	assert.Equal(t, env.clock.Now().AddDate(0, 0, 30), ent.ExpiresAt.UTC())

	stored := env.entitlement(t, userID, indID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusActive, stored.Status)
	assert.Nil(t, stored.ErrorMessage)

	entries := env.auditEntries(t, userID)
	require.Len(t, entries, 1)
	assert.Equal(t, auditdomain.OperationGrant, entries[0].Operation)
	assert.Equal(t, "admin@chartschool.io", entries[0].ActorID)
	assert.Equal(t, string(domain.StatusActive), entries[0].Status)
}

func TestGrantOnePrefersGatewayExpiry(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	indID := env.seedIndicator(t, "PUB;alpha", "Alpha Signals", indicatordomain.TierPremium, indicatordomain.StatusActive)

	reported := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	env.gateway.grantFn = func(string, []string, string) (gateway.BatchResult, error) {
		out := successOutcome("PUB;alpha")
		out.Expiration = &reported
		return gateway.BatchResult{out}, nil
	}

	ent, err := env.svc.GrantOne(context.Background(), domain.GrantOneRequest{
		UserID: userID, IndicatorID: indID,
		Duration: domain.DurationThirtyDay, ActorID: "admin",
	})
	require.NoError(t, err)
	require.NotNil(t, ent.ExpiresAt)
	assert.Equal(t, reported, ent.ExpiresAt.UTC())
}

func TestGrantOneTransportErrorLandsInLedger(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	indID := env.seedIndicator(t, "PUB;alpha", "Alpha Signals", indicatordomain.TierPremium, indicatordomain.StatusActive)

	env.gateway.grantFn = func(string, []string, string) (gateway.BatchResult, error) {
		return nil, &gateway.TransportError{Op: "grant", Username: "trader_jane", StatusCode: 500, Err: errors.New("boom")}
	}

	_, err := env.svc.GrantOne(context.Background(), domain.GrantOneRequest{
		UserID: userID, IndicatorID: indID,
		Duration: domain.DurationOneYear, ActorID: "admin",
	})
	var tErr *gateway.TransportError
	require.ErrorAs(t, err, &tErr)

	stored := env.entitlement(t, userID, indID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Nil(t, stored.GrantedAt)
	require.NotNil(t, stored.ErrorMessage)
	assert.NotEmpty(t, *stored.ErrorMessage)

	entries := env.auditEntries(t, userID)
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.StatusFailed), entries[0].Status)
	require.NotNil(t, entries[0].ErrorText)
}

func TestGrantOneKeyFailure(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	indID := env.seedIndicator(t, "PUB;alpha", "Alpha Signals", indicatordomain.TierPremium, indicatordomain.StatusActive)

	env.gateway.grantFn = func(string, []string, string) (gateway.BatchResult, error) {
		return gateway.BatchResult{failedOutcome("PUB;alpha", "user not found on platform")}, nil
	}

	_, err := env.svc.GrantOne(context.Background(), domain.GrantOneRequest{
		UserID: userID, IndicatorID: indID,
		Duration: domain.DurationSevenDays, ActorID: "admin",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user not found on platform")

	stored := env.entitlement(t, userID, indID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "user not found on platform", *stored.ErrorMessage)
}

func TestGrantOneOnboardingGate(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "", false)
	indID := env.seedIndicator(t, "PUB;alpha", "Alpha Signals", indicatordomain.TierPremium, indicatordomain.StatusActive)

	_, err := env.svc.GrantOne(context.Background(), domain.GrantOneRequest{
		UserID: userID, IndicatorID: indID,
		Duration: domain.DurationSevenDays, ActorID: "admin",
	})
	require.ErrorIs(t, err, userdomain.ErrOnboardingIncomplete)

	// Gate failures never reach the external platform and never write.
	assert.Zero(t, env.gateway.grantCalls)
	assert.Nil(t, env.entitlement(t, userID, indID))
	assert.Empty(t, env.auditEntries(t, userID))
}

func TestGrantOneAlreadyActive(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	indID := env.seedIndicator(t, "PUB;alpha", "Alpha Signals", indicatordomain.TierPremium, indicatordomain.StatusActive)

	grantedAt := env.clock.Now().Add(-time.Hour)
	expires := env.clock.Now().Add(24 * time.Hour)
	require.NoError(t, env.db.Create(&domain.Entitlement{
		ID: env.genID.Generate(), UserID: userID, IndicatorID: indID,
		Status: domain.StatusActive, DurationCode: domain.DurationSevenDays,
		GrantedAt: &grantedAt, ExpiresAt: &expires, Source: domain.SourceManual,
		CreatedAt: grantedAt, UpdatedAt: grantedAt,
	}).Error)

	_, err := env.svc.GrantOne(context.Background(), domain.GrantOneRequest{
		UserID: userID, IndicatorID: indID,
		Duration: domain.DurationSevenDays, ActorID: "admin",
	})
	require.ErrorIs(t, err, domain.ErrAlreadyActive)
	assert.Zero(t, env.gateway.grantCalls)
}

func TestGrantOneRegrantAfterLogicalExpiry(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	indID := env.seedIndicator(t, "PUB;alpha", "Alpha Signals", indicatordomain.TierPremium, indicatordomain.StatusActive)

	grantedAt := env.clock.Now().Add(-40 * 24 * time.Hour)
	expired := env.clock.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, env.db.Create(&domain.Entitlement{
		ID: env.genID.Generate(), UserID: userID, IndicatorID: indID,
		Status: domain.StatusActive, DurationCode: domain.DurationThirtyDay,
		GrantedAt: &grantedAt, ExpiresAt: &expired, Source: domain.SourceManual,
		CreatedAt: grantedAt, UpdatedAt: grantedAt,
	}).Error)

	env.gateway.grantFn = func(string, []string, string) (gateway.BatchResult, error) {
		return gateway.BatchResult{successOutcome("PUB;alpha")}, nil
	}

	ent, err := env.svc.GrantOne(context.Background(), domain.GrantOneRequest{
		UserID: userID, IndicatorID: indID,
		Duration: domain.DurationThirtyDay, ActorID: "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, ent.Status)
	require.NotNil(t, ent.ExpiresAt)
	assert.True(t, ent.ExpiresAt.After(env.clock.Now()))

	// Upsert in place: still exactly one ledger row for the pair.
	var count int64
	require.NoError(t, env.db.Model(&domain.Entitlement{}).
		Where("user_id = ? AND indicator_id = ?", userID, indID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

// -- GrantTier --

func TestGrantTierMixedOutcomes(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	activeID := env.seedIndicator(t, "PUB;held", "Already Held", indicatordomain.TierPremium, indicatordomain.StatusActive)
	okID := env.seedIndicator(t, "PUB;ok", "Grants Fine", indicatordomain.TierPremium, indicatordomain.StatusActive)
	badID := env.seedIndicator(t, "PUB;bad", "Platform Rejects", indicatordomain.TierPremium, indicatordomain.StatusActive)
	env.seedIndicator(t, "PUB;free", "Free Thing", indicatordomain.TierFree, indicatordomain.StatusActive)

	grantedAt := env.clock.Now().Add(-time.Hour)
	require.NoError(t, env.db.Create(&domain.Entitlement{
		ID: env.genID.Generate(), UserID: userID, IndicatorID: activeID,
		Status: domain.StatusActive, DurationCode: domain.DurationLifetime,
		GrantedAt: &grantedAt, Source: domain.SourceManual,
		CreatedAt: grantedAt, UpdatedAt: grantedAt,
	}).Error)

	env.gateway.grantFn = func(_ string, keys []string, _ string) (gateway.BatchResult, error) {
		// Held key was skipped before the call.
		assert.ElementsMatch(t, []string{"PUB;ok", "PUB;bad"}, keys)
		return gateway.BatchResult{
			successOutcome("PUB;ok"),
			failedOutcome("PUB;bad", "script not published"),
		}, nil
	}

	resp, err := env.svc.GrantTier(context.Background(), domain.GrantTierRequest{
		UserID: userID, Tier: indicatordomain.TierPremium,
		Duration: domain.DurationOneYear, ActorID: "admin",
	})
	require.NoError(t, err)
	require.Len(t, resp.Outcomes, 3)
	assert.Equal(t, 1, env.gateway.grantCalls)

	byID := make(map[snowflake.ID]domain.GrantOutcome, len(resp.Outcomes))
	for _, o := range resp.Outcomes {
		byID[o.IndicatorID] = o
	}

	assert.True(t, byID[activeID].Skipped)
	assert.Equal(t, "already_active", byID[activeID].SkipReason)

	assert.Equal(t, domain.StatusActive, byID[okID].Status)
	assert.False(t, byID[okID].Skipped)

	assert.Equal(t, domain.StatusFailed, byID[badID].Status)
	assert.Equal(t, "script not published", byID[badID].Error)

	okEnt := env.entitlement(t, userID, okID)
	require.NotNil(t, okEnt)
	assert.Equal(t, domain.StatusActive, okEnt.Status)
	badEnt := env.entitlement(t, userID, badID)
	require.NotNil(t, badEnt)
	assert.Equal(t, domain.StatusFailed, badEnt.Status)

	// One audit entry per attempted key; skips are not attempts.
	entries := env.auditEntries(t, userID)
	assert.Len(t, entries, 2)
}

func TestGrantTierTransportError(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	aID := env.seedIndicator(t, "PUB;a", "A", indicatordomain.TierPremium, indicatordomain.StatusActive)
	bID := env.seedIndicator(t, "PUB;b", "B", indicatordomain.TierPremium, indicatordomain.StatusActive)

	env.gateway.grantFn = func(string, []string, string) (gateway.BatchResult, error) {
		return nil, &gateway.TransportError{Op: "grant", Username: "trader_jane", Err: errors.New("connection refused")}
	}

	_, err := env.svc.GrantTier(context.Background(), domain.GrantTierRequest{
		UserID: userID, Tier: indicatordomain.TierPremium,
		Duration: domain.DurationOneYear, ActorID: "admin",
	})
	var tErr *gateway.TransportError
	require.ErrorAs(t, err, &tErr)

	// No per-key verdicts exist, so no ledger rows.
	assert.Nil(t, env.entitlement(t, userID, aID))
	assert.Nil(t, env.entitlement(t, userID, bID))

	// One whole-call audit entry with no indicator attached.
	entries := env.auditEntries(t, userID)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].IndicatorID)
	assert.Equal(t, string(domain.StatusFailed), entries[0].Status)
}

func TestGrantTierNothingToGrant(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	env.seedIndicator(t, "PUB;off", "Disabled", indicatordomain.TierPremium, indicatordomain.StatusDisabled)

	_, err := env.svc.GrantTier(context.Background(), domain.GrantTierRequest{
		UserID: userID, Tier: indicatordomain.TierPremium,
		Duration: domain.DurationOneYear, ActorID: "admin",
	})
	require.ErrorIs(t, err, domain.ErrNothingToGrant)
	assert.Zero(t, env.gateway.grantCalls)
}

// -- Revoke --

func TestRevokeOneSuccess(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	indID := env.seedIndicator(t, "PUB;alpha", "Alpha Signals", indicatordomain.TierPremium, indicatordomain.StatusActive)

	grantedAt := env.clock.Now().Add(-time.Hour)
	require.NoError(t, env.db.Create(&domain.Entitlement{
		ID: env.genID.Generate(), UserID: userID, IndicatorID: indID,
		Status: domain.StatusActive, DurationCode: domain.DurationLifetime,
		GrantedAt: &grantedAt, Source: domain.SourceManual,
		CreatedAt: grantedAt, UpdatedAt: grantedAt,
	}).Error)

	env.gateway.revokeFn = func(username string, keys []string) (gateway.BatchResult, error) {
		assert.Equal(t, []string{"PUB;alpha"}, keys)
		return gateway.BatchResult{successOutcome("PUB;alpha")}, nil
	}

	ent, err := env.svc.RevokeOne(context.Background(), domain.RevokeOneRequest{
		UserID: userID, IndicatorID: indID, ActorID: "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRevoked, ent.Status)

	entries := env.auditEntries(t, userID)
	require.Len(t, entries, 1)
	assert.Equal(t, auditdomain.OperationRevoke, entries[0].Operation)
	assert.Equal(t, string(domain.StatusRevoked), entries[0].Status)
}

func TestRevokeOneIdempotentNoOp(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	indID := env.seedIndicator(t, "PUB;alpha", "Alpha Signals", indicatordomain.TierPremium, indicatordomain.StatusActive)

	ent, err := env.svc.RevokeOne(context.Background(), domain.RevokeOneRequest{
		UserID: userID, IndicatorID: indID, ActorID: "admin",
	})
	require.NoError(t, err)
	assert.Nil(t, ent)
	assert.Zero(t, env.gateway.revokeCalls)

	// The no-op still leaves a trail entry.
	entries := env.auditEntries(t, userID)
	require.Len(t, entries, 1)
	assert.Equal(t, "no-op", entries[0].Status)
}

func TestRevokeOneTransportErrorKeepsStatus(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	indID := env.seedIndicator(t, "PUB;alpha", "Alpha Signals", indicatordomain.TierPremium, indicatordomain.StatusActive)

	grantedAt := env.clock.Now().Add(-time.Hour)
	require.NoError(t, env.db.Create(&domain.Entitlement{
		ID: env.genID.Generate(), UserID: userID, IndicatorID: indID,
		Status: domain.StatusActive, DurationCode: domain.DurationLifetime,
		GrantedAt: &grantedAt, Source: domain.SourceManual,
		CreatedAt: grantedAt, UpdatedAt: grantedAt,
	}).Error)

	env.gateway.revokeFn = func(string, []string) (gateway.BatchResult, error) {
		return nil, &gateway.TransportError{Op: "revoke", Username: "trader_jane", Err: errors.New("timeout")}
	}

	_, err := env.svc.RevokeOne(context.Background(), domain.RevokeOneRequest{
		UserID: userID, IndicatorID: indID, ActorID: "admin",
	})
	var tErr *gateway.TransportError
	require.ErrorAs(t, err, &tErr)

	// Platform state is unknown; the ledger keeps claiming active rather
	// than guessing revoked.
	stored := env.entitlement(t, userID, indID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusActive, stored.Status)
}

func TestRevokeTierDemuxesOutcomes(t *testing.T) {
	env := newTestEnv(t)
	userID := env.seedUser(t, "trader_jane", true)
	heldID := env.seedIndicator(t, "PUB;held", "Held", indicatordomain.TierPremium, indicatordomain.StatusActive)
	bareID := env.seedIndicator(t, "PUB;bare", "Never Granted", indicatordomain.TierPremium, indicatordomain.StatusActive)

	grantedAt := env.clock.Now().Add(-time.Hour)
	require.NoError(t, env.db.Create(&domain.Entitlement{
		ID: env.genID.Generate(), UserID: userID, IndicatorID: heldID,
		Status: domain.StatusActive, DurationCode: domain.DurationLifetime,
		GrantedAt: &grantedAt, Source: domain.SourceManual,
		CreatedAt: grantedAt, UpdatedAt: grantedAt,
	}).Error)

	env.gateway.revokeFn = func(_ string, keys []string) (gateway.BatchResult, error) {
		assert.Equal(t, []string{"PUB;held"}, keys)
		return gateway.BatchResult{successOutcome("PUB;held")}, nil
	}

	resp, err := env.svc.RevokeTier(context.Background(), domain.RevokeTierRequest{
		UserID: userID, Tier: indicatordomain.TierPremium, ActorID: "admin",
	})
	require.NoError(t, err)
	require.Len(t, resp.Outcomes, 2)

	byID := make(map[snowflake.ID]domain.GrantOutcome, len(resp.Outcomes))
	for _, o := range resp.Outcomes {
		byID[o.IndicatorID] = o
	}
	assert.False(t, byID[heldID].Skipped)
	assert.Equal(t, domain.StatusRevoked, byID[heldID].Status)
	assert.True(t, byID[bareID].Skipped)

	stored := env.entitlement(t, userID, heldID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusRevoked, stored.Status)
}

func TestGrantRequiresActor(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.GrantOne(context.Background(), domain.GrantOneRequest{
		UserID: 1, IndicatorID: 2, Duration: domain.DurationSevenDays,
	})
	require.ErrorIs(t, err, domain.ErrActorRequired)

	_, err = env.svc.GrantOne(context.Background(), domain.GrantOneRequest{
		UserID: 1, IndicatorID: 2, Duration: "90D", ActorID: "admin",
	})
	require.ErrorIs(t, err, domain.ErrInvalidDuration)
}
