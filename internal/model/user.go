package model

import "time"

// User represents an application user record as stored in the `users`
// table. Identity is managed by the auth endpoints; the booking core only
// reads the ID and the eligibility flags. The json tags are omitted because
// these structs are used by the repository layer; handlers define separate
// response types.
//
// Fields:
//  ID              – primary key identifier of the user.
//  Email           – unique email address.
//  PasswordHash    – bcrypt hashed password.
//  IsVerified      – whether the email address has been verified.
//  ProfileComplete – whether the profile form has been filled in.
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – timestamp of last update.
type User struct {
	ID              uint64    // users.id
	Email           string    // users.email
	PasswordHash    string    // users.password_hash
	IsVerified      bool      // users.is_verified
	ProfileComplete bool      // users.profile_complete
	CreatedAt       time.Time // users.created_at
	UpdatedAt       time.Time // users.updated_at
}
