package domain

import "time"

// DurationCode selects a coarse entitlement length. The values double as
// the gateway's wire codes.
type DurationCode string

const (
	DurationSevenDays DurationCode = "7D"
	DurationThirtyDay DurationCode = "30D"
	DurationOneYear   DurationCode = "1Y"
	DurationLifetime  DurationCode = "1L"
)

func (d DurationCode) Valid() bool {
	switch d {
	case DurationSevenDays, DurationThirtyDay, DurationOneYear, DurationLifetime:
		return true
	}
	return false
}

// ExpiryFrom maps the code to an absolute expiry computed in UTC from the
// moment of the successful gateway response. Lifetime has no expiry.
func (d DurationCode) ExpiryFrom(grantedAt time.Time) *time.Time {
	grantedAt = grantedAt.UTC()
	var expires time.Time
	switch d {
	case DurationSevenDays:
		expires = grantedAt.AddDate(0, 0, 7)
	case DurationThirtyDay:
		expires = grantedAt.AddDate(0, 0, 30)
	case DurationOneYear:
		expires = grantedAt.AddDate(1, 0, 0)
	default:
		return nil
	}
	return &expires
}
