package member

import "time"

// Member is the persisted verification record of a Telegram user.
// ID is the Telegram user ID. A member has no row until the first successful verification.
type Member struct {
	ID            int64      `json:"id"`
	Verified      bool       `json:"verified"`
	IsGlobalAdmin bool       `json:"is_global_admin"`
	CreatedAt     time.Time  `json:"created_at"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
}

// IsVerified reports whether m is a known, verified member. Unknown (nil) members are unverified.
func IsVerified(m *Member) bool {
	return m != nil && m.Verified
}

// IsAdmin reports whether m carries the global admin flag.
func IsAdmin(m *Member) bool {
	return m != nil && m.IsGlobalAdmin
}

// State names the verification state of a possibly unknown member for logs.
func State(m *Member) string {
	switch {
	case m == nil:
		return "unknown"
	case m.Verified:
		return "verified"
	default:
		return "unverified"
	}
}
