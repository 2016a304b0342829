package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bottle-ledger/ledger"
)

func TestPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "s3cret-pass"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrInvalidCredentials)
}

func TestPassword_TooShort(t *testing.T) {
	_, err := HashPassword("abc")
	assert.Error(t, err)
}

func TestTokens_IssueAndParse(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	token, expires, err := tokens.Issue(Actor{ID: "mod-1", Role: ledger.RoleModerator, Name: "Ali"})
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	actor, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "mod-1", actor.ID)
	assert.Equal(t, ledger.RoleModerator, actor.Role)
	assert.Equal(t, "Ali", actor.Name)
	assert.False(t, actor.IsAdmin())
}

func TestTokens_RejectsExpiredAndForeign(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Minute)
	require.NoError(t, err)

	token, _, err := tokens.Issue(Actor{ID: "admin-1", Role: ledger.RoleAdmin})
	require.NoError(t, err)

	// an hour later the token has expired
	tokens.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = tokens.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokens("other-secret", time.Minute)
	require.NoError(t, err)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokens_RequiresSecret(t *testing.T) {
	_, err := NewTokens("  ", time.Hour)
	assert.Error(t, err)
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), Actor{ID: "admin-1", Role: ledger.RoleAdmin})
	a, ok := ActorFromContext(ctx)
	require.True(t, ok)
	assert.True(t, a.IsAdmin())
}
