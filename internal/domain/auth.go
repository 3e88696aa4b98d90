package domain

import "time"

// Principal is the authenticated caller derived from a session token.
// The service runs with a single demo credential pair, so a principal is
// just the email used as the audit actor identifier.
type Principal struct {
	Email string
}

// Token holds metadata about an issued session token.
type Token struct {
	ID        string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
