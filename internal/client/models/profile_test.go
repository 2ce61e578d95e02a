package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission_RoleMatrix(t *testing.T) {
	perms := [][]string{nil, {}, {"products"}, {"orders", "products"}, {"orders"}}

	for _, p := range perms {
		super := &UserProfile{Role: RoleSuperAdmin, Permissions: p}
		user := &UserProfile{Role: RoleUser, Permissions: p}
		admin := &UserProfile{Role: RoleAdmin, Permissions: p}

		assert.True(t, super.HasPermission("products"), "superadmin %v", p)
		assert.False(t, user.HasPermission("products"), "user %v", p)

		want := false
		for _, tag := range p {
			if tag == "products" {
				want = true
			}
		}
		assert.Equal(t, want, admin.HasPermission("products"), "admin %v", p)
	}
}

func TestHasPermission_NilProfile(t *testing.T) {
	var p *UserProfile
	assert.False(t, p.HasPermission("products"))
}

func TestDefaultProfile(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	p := DefaultProfile("sub-1", "a@b.c", now)

	assert.Equal(t, "sub-1", p.ID)
	assert.Equal(t, "a@b.c", p.Email)
	assert.Equal(t, RoleUser, p.Role)
	assert.Empty(t, p.Permissions)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), p.JoinedDate)
}

func TestApply_LeavesOriginalUntouched(t *testing.T) {
	name := "New Name"
	orig := &UserProfile{ID: "1", Name: "Old", Phone: "123", Permissions: []string{"a"}}

	got := orig.Apply(ProfileUpdate{Name: &name})

	require.NotSame(t, orig, got)
	assert.Equal(t, "Old", orig.Name)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, "123", got.Phone)

	got.Permissions[0] = "b"
	assert.Equal(t, "a", orig.Permissions[0])
}

func TestSession_Expired(t *testing.T) {
	now := time.Unix(1_000, 0)

	var nilSession *Session
	assert.True(t, nilSession.Expired(now))
	assert.False(t, (&Session{ExpiresAt: 0}).Expired(now))
	assert.False(t, (&Session{ExpiresAt: 1_001}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: 1_000}).Expired(now))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("owner").Valid())
}
