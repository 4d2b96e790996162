package entity

import "time"

// Account represents a row in the `accounts` table. The password hash
// and verification code never leave the account package; handlers only
// see projections.
type Account struct {
	ID                int64     `db:"id"`
	Username          string    `db:"username"`
	Email             string    `db:"email"`
	PasswordHash      string    `db:"password_hash"`
	VerifyCode        string    `db:"verify_code"`
	VerifyCodeExpiry  time.Time `db:"verify_code_expiry"`
	Verified          bool      `db:"verified"`
	AcceptingMessages bool      `db:"accepting_messages"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Principal is the authenticated identity snapshot embedded into a
// session token at login. The Verified and AcceptingMessages values are
// frozen at issue time and may lag the store until re-login.
type Principal struct {
	ID                int64  `json:"id"`
	Username          string `json:"username"`
	Verified          bool   `json:"verified"`
	AcceptingMessages bool   `json:"acceptingMessages"`
}
