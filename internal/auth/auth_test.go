package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role  string
		perm  string
		allow bool
	}{
		{RoleAdmin, PermBackup, true},
		{RoleAdmin, PermDelete, true},
		{RoleManager, PermWrite, true},
		{RoleManager, PermDelete, false},
		{RoleManager, PermBackup, false},
		{RoleUser, PermRead, true},
		{RoleUser, PermWrite, false},
		{"", PermRead, true},
		{RoleUser, "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.perm, func(t *testing.T) {
			assert.Equal(t, tt.allow, HasPermission(tt.role, tt.perm))
		})
	}
}

func TestUserID(t *testing.T) {
	assert.Equal(t, SystemUserID, UserID(context.Background()))

	ctx := WithIdentity(context.Background(), &Identity{UID: "u-42"})
	assert.Equal(t, "u-42", UserID(ctx))

	var nilID *Identity
	assert.False(t, nilID.Can(PermRead))
}

func TestTranslateError(t *testing.T) {
	assert.Equal(t, "Invalid email or password.", TranslateError("auth/invalid-credential", "raw"))
	assert.Equal(t, "raw provider text", TranslateError("auth/something-new", "raw provider text"))
	assert.Equal(t, "An error occurred", TranslateError("auth/something-new", ""))
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier("test-secret", "firework-factory")

	token, err := v.Issue(Identity{UID: "u1", Email: "a@b.c", DisplayName: "Ada Byron", Role: RoleManager}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UID)
	assert.Equal(t, "a@b.c", id.Email)
	assert.Equal(t, RoleManager, id.Role)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("test-secret", "firework-factory")

	other, err := NewJWTVerifier("other-secret", "firework-factory").Issue(Identity{UID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(other)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	expired, err := v.Issue(Identity{UID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "auth/id-token-expired", perr.Code)

	wrongIssuer, err := NewJWTVerifier("test-secret", "someone-else").Issue(Identity{UID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestJWTVerifier_DefaultsRole(t *testing.T) {
	v := NewJWTVerifier("s", "")
	token, err := v.Issue(Identity{UID: "u1"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, id.Role)
}

func TestProfiles_ResolveCreatesThenUsesStoredRole(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := NewProfiles(st)

	id, err := p.Resolve(ctx, &Identity{UID: "u1", DisplayName: "Grace Hopper", Role: RoleUser})
	require.NoError(t, err)
	assert.Equal(t, RoleUser, id.Role)

	prof, err := p.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", prof.FirstName)
	assert.Equal(t, "Hopper", prof.LastName)

	require.NoError(t, p.SetRole(ctx, "u1", RoleAdmin))
	id, err = p.Resolve(ctx, &Identity{UID: "u1", Role: RoleUser})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, id.Role)

	assert.Error(t, p.SetRole(ctx, "u1", "owner"))
}

func TestProfiles_DisabledUser(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(ctx, models.CollectionUsers, "u2", models.Document{"role": RoleAdmin, "isActive": false}))

	_, err := NewProfiles(st).Resolve(ctx, &Identity{UID: "u2"})
	assert.ErrorIs(t, err, ErrForbidden)
}
