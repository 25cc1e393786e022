package service

import (
	"context"
	"testing"

	"clothingrental/internal/events"
	"clothingrental/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.EnsureDefaultAdmin(ctx))
	require.NoError(t, f.store.UpsertUser(ctx, models.User{ID: "user-2", Email: "kim@example.com", Role: models.RoleCustomer}))

	tests := []struct {
		name     string
		email    string
		password string
		want     bool
	}{
		{"admin with any password", models.DefaultAdminEmail, "whatever", true},
		{"customer with shared password", "kim@example.com", models.DefaultAdminPassword, true},
		{"customer with wrong password", "kim@example.com", "nope", false},
		{"unknown user with shared password", "ghost@example.com", models.DefaultAdminPassword, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, f.auth.Logout(ctx))

			ok, err := f.auth.Login(ctx, tt.email, tt.password)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			current, err := f.auth.Current(ctx)
			require.NoError(t, err)
			if tt.want {
				require.NotNil(t, current)
				assert.Equal(t, tt.email, current.Email)
			} else {
				assert.Nil(t, current)
			}
		})
	}
}

func TestAuthService_FailedLoginKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.EnsureDefaultAdmin(ctx))

	ok, err := f.auth.Login(ctx, models.DefaultAdminEmail, "")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.auth.Login(ctx, "ghost@example.com", "bad")
	require.NoError(t, err)
	assert.False(t, ok)

	current, err := f.auth.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, models.DefaultAdminID, current.ID)
}

func TestAuthService_AdminChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.EnsureDefaultAdmin(ctx))
	require.NoError(t, f.store.UpsertUser(ctx, models.User{ID: "user-2", Email: "kim@example.com", Role: models.RoleCustomer}))

	isAdmin, err := f.auth.IsAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, isAdmin)
	assert.ErrorIs(t, f.auth.RequireAdmin(ctx), ErrForbidden)

	_, err = f.auth.Login(ctx, "kim@example.com", models.DefaultAdminPassword)
	require.NoError(t, err)
	assert.ErrorIs(t, f.auth.RequireAdmin(ctx), ErrForbidden)

	_, err = f.auth.Login(ctx, models.DefaultAdminEmail, models.DefaultAdminPassword)
	require.NoError(t, err)
	assert.NoError(t, f.auth.RequireAdmin(ctx))
}

func TestAuthService_Logout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.EnsureDefaultAdmin(ctx))

	// logout без сессии тоже успешен
	require.NoError(t, f.auth.Logout(ctx))
	f.events.AssertNotCalled(t, "PublishJSON", events.EventUserLoggedOut, mock.Anything)

	_, err := f.auth.Login(ctx, models.DefaultAdminEmail, "x")
	require.NoError(t, err)
	require.NoError(t, f.auth.Logout(ctx))

	current, err := f.auth.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
	f.events.AssertCalled(t, "PublishJSON", events.EventUserLoggedOut, mock.Anything)
}

func TestAuthService_EnsureDefaultAdminTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.EnsureDefaultAdmin(ctx))
	require.NoError(t, f.auth.EnsureDefaultAdmin(ctx))

	users, err := f.store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
	assert.Equal(t, models.DefaultAdminEmail, users[0].Email)
}
