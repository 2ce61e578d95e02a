package models

import (
	"slices"
	"time"
)

// Role is the coarse authorization level of a profile.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// UserProfile is the durable account record keyed 1:1 by Session.SubjectID.
type UserProfile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Country     string    `json:"country"`
	Role        Role      `json:"role"`
	Permissions []string  `json:"permissions"`
	JoinedDate  time.Time `json:"joined_date"`
}

// DefaultProfile synthesizes the profile used when the remote store has no
// record for id.
func DefaultProfile(id, email string, now time.Time) *UserProfile {
	y, m, d := now.UTC().Date()
	return &UserProfile{
		ID:          id,
		Email:       email,
		Role:        RoleUser,
		Permissions: []string{},
		JoinedDate:  time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}
}

// HasPermission: superadmin holds every capability, admin holds the tags in
// its permission set and user holds none.
func (p *UserProfile) HasPermission(tag string) bool {
	if p == nil {
		return false
	}
	switch p.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return slices.Contains(p.Permissions, tag)
	default:
		return false
	}
}

// Clone returns a deep copy.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Permissions = slices.Clone(p.Permissions)
	return &c
}

// Apply returns a copy of p with the non-nil fields of u applied.
func (p *UserProfile) Apply(u ProfileUpdate) *UserProfile {
	c := p.Clone()
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	if u.Country != nil {
		c.Country = *u.Country
	}
	return c
}

// Record converts the profile into the upsert payload.
func (p *UserProfile) Record() ProfileRecord {
	return ProfileRecord{ID: p.ID, Email: p.Email, Name: p.Name, Phone: p.Phone, Country: p.Country}
}

// ProfileUpdate is a partial profile change; nil fields are left untouched.
type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Country *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.Phone == nil && u.Country == nil
}

// ProfileRecord is the insert-or-update payload written to the profile
// store. Role and permissions are managed elsewhere and never written here.
type ProfileRecord struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Country string `json:"country"`
}
