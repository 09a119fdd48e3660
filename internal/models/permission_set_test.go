package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionSet_Basics(t *testing.T) {
	set := NewPermissionSet("users.view", "users.create", "", "users.view")
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Has("users.view"))
	assert.False(t, set.Has(""))

	set.Remove("users.view")
	assert.False(t, set.Has("users.view"))

	var empty PermissionSet
	assert.False(t, empty.Has("users.view"))
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Slice())
}

func TestPermissionSet_MergeAndEqual(t *testing.T) {
	a := NewPermissionSet("orders.view", "menu.view")
	b := NewPermissionSet("orders.edit", "menu.view")
	a.Merge(b)

	assert.Equal(t, []string{"menu.view", "orders.edit", "orders.view"}, a.Slice())
	assert.True(t, a.Equal(NewPermissionSet("orders.view", "orders.edit", "menu.view")))
	assert.False(t, a.Equal(NewPermissionSet("orders.view", "orders.edit", "menu.edit")))
	assert.False(t, a.Equal(b))
}

func TestPermissionSet_JSON(t *testing.T) {
	set := NewPermissionSet("b.view", "a.view")
	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["a.view","b.view"]`, string(data))

	var decoded PermissionSet
	require.NoError(t, json.Unmarshal([]byte(`["x.edit","x.edit","y.view"]`), &decoded))
	assert.True(t, decoded.Equal(NewPermissionSet("x.edit", "y.view")))

	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &decoded))
}

func TestRole_PermissionsRoundTrip(t *testing.T) {
	role := &Role{}
	role.SetPermissions(NewPermissionSet("users.edit", "users.view"))
	assert.Equal(t, []string{"users.edit", "users.view"}, []string(role.Permissions))
	assert.True(t, role.PermissionSet().Has("users.edit"))
}

func TestRole_VisibleTo(t *testing.T) {
	tenant := uint(7)
	global := &Role{}
	scoped := &Role{RestaurantID: &tenant}

	assert.True(t, global.VisibleTo(1))
	assert.True(t, scoped.VisibleTo(7))
	assert.False(t, scoped.VisibleTo(8))
}

func TestUserRole_EffectiveAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&UserRole{IsActive: true}).EffectiveAt(now))
	assert.True(t, (&UserRole{IsActive: true, ExpiresAt: &future}).EffectiveAt(now))
	assert.False(t, (&UserRole{IsActive: true, ExpiresAt: &past}).EffectiveAt(now))
	assert.False(t, (&UserRole{IsActive: true, ExpiresAt: &now}).EffectiveAt(now))
	assert.False(t, (&UserRole{IsActive: false}).EffectiveAt(now))
}

func TestUser_Password(t *testing.T) {
	user := &User{}
	require.NoError(t, user.SetPassword("s3cret-pass"))
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.True(t, user.CheckPassword("s3cret-pass"))
	assert.False(t, user.CheckPassword("wrong"))
}
