package reconcile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// CohortRow is one legacy user record supplied by an external collaborator.
// Untrusted input: the claimed username and entitlements are re-verified
// against current authoritative state before any ledger mutation.
type CohortRow struct {
	UserID          snowflake.ID
	ClaimedUsername string
	ClaimedKeys     []string
}

type MemberStatus string

const (
	MemberSynced  MemberStatus = "synced"
	MemberFailed  MemberStatus = "failed"
	MemberSkipped MemberStatus = "skipped"
)

// MemberOutcome is the per-member detail captured in the report. Skips are
// first-class outcomes: the operator must be able to tell "nothing to do"
// from "tried and failed" from "deliberately not touched".
type MemberOutcome struct {
	UserID      snowflake.ID `json:"user_id"`
	Username    string       `json:"username,omitempty"`
	Status      MemberStatus `json:"status"`
	Reason      string       `json:"reason,omitempty"`
	KeysSynced  int          `json:"keys_synced,omitempty"`
	KeysIgnored int          `json:"keys_ignored,omitempty"`
}

// Report is the persisted summary of one reconciliation run, independent
// of the streaming audit entries written while syncing.
type Report struct {
	RunID      string         `gorm:"column:run_id;primaryKey;type:text" json:"run_id"`
	StartedAt  time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Synced     int            `gorm:"not null;default:0" json:"synced"`
	Failed     int            `gorm:"not null;default:0" json:"failed"`
	Skipped    int            `gorm:"not null;default:0" json:"skipped"`
	Cancelled  bool           `gorm:"not null;default:false" json:"cancelled"`
	Details    datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Report) TableName() string { return "reconciliation_reports" }

var ErrReportNotFound = errors.New("reconciliation_report_not_found")

// LoadCohortCSV parses cohort rows. Expected header:
// user_id,tradingview_username,claimed_keys with claimed keys separated by
// pipes, since pine IDs themselves contain semicolons.
func LoadCohortCSV(r io.Reader) ([]CohortRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read cohort csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"user_id", "tradingview_username"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("cohort csv missing %q column", required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []CohortRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read cohort csv line %d: %w", line+1, err)
		}
		line++

		userID, err := snowflake.ParseString(field(record, "user_id"))
		if err != nil || userID == 0 {
			return nil, fmt.Errorf("cohort csv line %d: invalid user_id %q", line, field(record, "user_id"))
		}
		username := field(record, "tradingview_username")
		if username == "" {
			return nil, fmt.Errorf("cohort csv line %d: empty tradingview_username", line)
		}

		var keys []string
		if raw := field(record, "claimed_keys"); raw != "" {
			for _, key := range strings.Split(raw, "|") {
				if key = strings.TrimSpace(key); key != "" {
					keys = append(keys, key)
				}
			}
		}

		rows = append(rows, CohortRow{
			UserID:          userID,
			ClaimedUsername: username,
			ClaimedKeys:     keys,
		})
	}
	return rows, nil
}
