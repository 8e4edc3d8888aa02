package firewall

import "time"

// TemporaryAccessRecord is a time-bounded grant for an account. Timestamps
// are UTC with millisecond granularity. Invariant: GrantedAt <= ExpiresAt.
type TemporaryAccessRecord struct {
	GrantedAt time.Time `json:"granted_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewTemporaryAccessRecord builds a record spanning [now, now+duration),
// truncated to millisecond granularity.
func NewTemporaryAccessRecord(now time.Time, duration time.Duration) TemporaryAccessRecord {
	granted := now.UTC().Truncate(time.Millisecond)
	return TemporaryAccessRecord{
		GrantedAt: granted,
		ExpiresAt: granted.Add(duration),
	}
}
