package models

import "time"

// PendingSignup holds sign-up details captured before the email is verified.
// It survives reloads in the key-value store until reconciled.
type PendingSignup struct {
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
	// CodeLength is the length of the code sent for this sign-up; zero
	// means the configured default.
	CodeLength int `json:"code_length,omitempty"`
}

// Record builds the profile upsert payload for subjectID.
func (p PendingSignup) Record(subjectID string) ProfileRecord {
	return ProfileRecord{
		ID:      subjectID,
		Email:   p.Email,
		Name:    p.Name,
		Phone:   p.Phone,
		Country: p.Country,
	}
}
