// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import "time"

// User is a registered account. PasswordHash holds a self-contained bcrypt
// digest and is never exposed outside the service layer.
type User struct {
	ID           int64     // Database-assigned serial identifier.
	Username     string    // Unique login name, 3 to 50 characters.
	Email        string    // Unique contact address.
	PasswordHash string    // Opaque credential digest, stored verbatim.
	CreatedAt    time.Time // Timestamp of when this account was created.
	UpdatedAt    time.Time // Timestamp of the last modification to this account.
}

// UserChanges carries an optional set of updates for a user.
// A nil field is left untouched.
type UserChanges struct {
	Email        *string
	PasswordHash *string
}

// IsEmpty reports whether no field is set.
func (c UserChanges) IsEmpty() bool {
	return c.Email == nil && c.PasswordHash == nil
}
