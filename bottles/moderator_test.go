package bottles_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bottle-ledger/auth"
	"github.com/warp/bottle-ledger/bottles"
	"github.com/warp/bottle-ledger/ledger"
)

func TestModerators_CreateUpdateList(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		m, err := f.svc.CreateModerator(f.admin, bottles.ModeratorInput{
			Name: "sara", Phone: "+9607000000", Password: "secret-2", Areas: []string{"north", "harbour"}, Active: true,
		})
		require.NoError(t, err)

		_, err = f.svc.CreateModerator(f.admin, bottles.ModeratorInput{Name: "SARA", Password: "secret-3", Active: true})
		assert.ErrorIs(t, err, ledger.ErrConflict, "names are unique regardless of case")

		_, err = f.svc.CreateModerator(f.admin, bottles.ModeratorInput{Name: "omar", Password: "123"})
		assert.ErrorIs(t, err, ledger.ErrInvalidInput)

		_, err = f.svc.CreateModerator(f.mod, bottles.ModeratorInput{Name: "omar", Password: "secret-4"})
		assert.ErrorIs(t, err, ledger.ErrForbidden)

		updated, err := f.svc.UpdateModerator(f.admin, m.ID, bottles.ModeratorInput{Name: "sara", Areas: []string{"south"}, Active: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"south"}, updated.Areas)

		list, err := f.svc.ListModerators(context.Background())
		require.NoError(t, err)
		names := make([]string, 0, len(list))
		for _, x := range list {
			names = append(names, x.Name)
		}
		assert.ElementsMatch(t, []string{"ravi", "sara"}, names)
	})
}

func TestDeleteModerator_BlockedWhileHoldingBottles(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.issue(t, 10, 0)

		err := f.svc.DeleteModerator(f.admin, f.modID)
		assert.ErrorIs(t, err, ledger.ErrConflict)

		_, err = f.svc.ReturnBottles(f.mod, bottles.ReturnRequest{ModeratorID: f.modID, Remaining: 10})
		require.NoError(t, err)
		require.NoError(t, f.svc.DeleteModerator(f.admin, f.modID))

		err = f.svc.DeleteModerator(f.admin, f.modID)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestLogin(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		require.NoError(t, f.svc.EnsureAdmin(ctx, "Owner@Example.com", "admin-pass"))
		require.NoError(t, f.svc.EnsureAdmin(ctx, "owner@example.com", "ignored"), "second call keeps the account")

		admin, err := f.svc.LoginAdmin(ctx, "owner@example.com", "admin-pass")
		require.NoError(t, err)
		assert.True(t, admin.IsAdmin())

		_, err = f.svc.LoginAdmin(ctx, "owner@example.com", "ignored")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		_, err = f.svc.LoginAdmin(ctx, "nobody@example.com", "admin-pass")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

		mod, err := f.svc.LoginModerator(ctx, "ravi", "secret-1")
		require.NoError(t, err)
		assert.Equal(t, f.modID, mod.ID)
		assert.Equal(t, ledger.RoleModerator, mod.Role)

		_, err = f.svc.UpdateModerator(f.admin, f.modID, bottles.ModeratorInput{Name: "ravi", Active: false})
		require.NoError(t, err)
		_, err = f.svc.LoginModerator(ctx, "ravi", "secret-1")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}
