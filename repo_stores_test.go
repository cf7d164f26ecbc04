package access_test

import (
	"context"
	"database/sql"
	"io/fs"
	"path"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-access"
)

func setupRepositories(t *testing.T) (access.RepositoryManager, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	applyMigrations(t, bunDB)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	manager := access.NewRepositoryManager(bunDB)
	require.NoError(t, manager.Validate())

	return manager, cleanup
}

// applyMigrations executes the embedded migration files in lexical order.
func applyMigrations(t *testing.T, db *bun.DB) {
	t.Helper()

	migrations := access.GetMigrationsFS()

	var files []string
	err := fs.WalkDir(migrations, "data/sql/migrations", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && path.Ext(p) == ".sql" {
			files = append(files, p)
		}
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)

	for _, file := range files {
		contents, err := fs.ReadFile(migrations, file)
		require.NoError(t, err)
		_, err = db.Exec(string(contents))
		require.NoError(t, err, "migration %s failed", file)
	}
}

func TestMembershipsRepository(t *testing.T) {
	repos, cleanup := setupRepositories(t)
	defer cleanup()

	ctx := context.Background()
	store := repos.Memberships()

	accountID := uuid.New()
	userID := uuid.New()
	now := time.Now()

	created, err := store.UpsertMembership(ctx, &access.Membership{
		AccountID: accountID,
		UserID:    userID,
		Role:      access.RoleViewer,
		JoinedAt:  &now,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, access.RoleViewer, created.Role)

	found, err := store.GetMembership(ctx, accountID, userID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	// upserting the same (account, user) pair updates the role in place
	updated, err := store.UpsertMembership(ctx, &access.Membership{
		AccountID: accountID,
		UserID:    userID,
		Role:      access.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, access.RoleAdmin, updated.Role)

	members, err := store.GetMembers(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, members, 1)

	_, err = store.GetMembership(ctx, accountID, uuid.New())
	require.Error(t, err)
	assert.True(t, access.IsNotFound(err))

	require.NoError(t, store.DeleteMembership(ctx, accountID, userID))

	err = store.DeleteMembership(ctx, accountID, userID)
	require.Error(t, err)
	assert.True(t, access.IsNotFound(err))
}

func TestMembershipsRepositoryDeleteByAccount(t *testing.T) {
	repos, cleanup := setupRepositories(t)
	defer cleanup()

	ctx := context.Background()
	store := repos.Memberships()

	accountID := uuid.New()
	otherAccount := uuid.New()
	otherUser := uuid.New()

	for _, userID := range []uuid.UUID{uuid.New(), uuid.New()} {
		_, err := store.UpsertMembership(ctx, &access.Membership{
			AccountID: accountID,
			UserID:    userID,
			Role:      access.RoleViewer,
		})
		require.NoError(t, err)
	}

	_, err := store.UpsertMembership(ctx, &access.Membership{
		AccountID: otherAccount,
		UserID:    otherUser,
		Role:      access.RoleOwner,
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteByAccount(ctx, accountID))

	members, err := store.GetMembers(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, members)

	_, err = store.GetMembership(ctx, otherAccount, otherUser)
	assert.NoError(t, err)
}

func TestInvitationsRepository(t *testing.T) {
	repos, cleanup := setupRepositories(t)
	defer cleanup()

	ctx := context.Background()
	store := repos.Invitations()

	accountID := uuid.New()
	now := time.Now()

	created, err := store.Create(ctx, &access.Invitation{
		AccountID: accountID,
		Email:     "Invitee@Example.com",
		Role:      access.RoleEditor,
		InvitedBy: uuid.New(),
		Token:     "capability-token-1",
		Status:    access.InvitationStatusPending,
		ExpiresAt: now.Add(access.DefaultInvitationTTL),
		CreatedAt: &now,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	byID, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, access.InvitationStatusPending, byID.Status)

	byToken, err := store.GetByToken(ctx, "capability-token-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byToken.ID)

	// email comparison is case-insensitive
	pending, err := store.GetPending(ctx, accountID, "invitee@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, pending.ID)

	byToken.Status = access.InvitationStatusCancelled
	updatedInv, err := store.Update(ctx, byToken)
	require.NoError(t, err)
	assert.Equal(t, access.InvitationStatusCancelled, updatedInv.Status)

	// a cancelled invitation no longer matches the pending lookup
	_, err = store.GetPending(ctx, accountID, "invitee@example.com")
	require.Error(t, err)
	assert.True(t, access.IsNotFound(err))

	_, err = store.GetByToken(ctx, "unknown-token")
	require.Error(t, err)
	assert.True(t, access.IsNotFound(err))

	listed, err := store.ListByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, store.DeleteByAccount(ctx, accountID))

	listed, err = store.ListByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestInvitationsRepositoryUpdateMissing(t *testing.T) {
	repos, cleanup := setupRepositories(t)
	defer cleanup()

	_, err := repos.Invitations().Update(context.Background(), &access.Invitation{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Email:     "ghost@example.com",
		Role:      access.RoleViewer,
		InvitedBy: uuid.New(),
		Token:     "ghost-token",
		Status:    access.InvitationStatusPending,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, access.IsNotFound(err))
}

func TestManagersOverDurableStores(t *testing.T) {
	repos, cleanup := setupRepositories(t)
	defer cleanup()

	ctx := context.Background()

	members := access.NewMembershipManager(repos.Memberships())
	invitations := access.NewInvitationManager(repos.Invitations(), members, nil)

	accountID := uuid.New()
	adminID := uuid.New()
	seedMembership(t, repos.Memberships(), accountID, adminID, access.RoleOwner)

	created, err := invitations.Create(ctx, actorFor(adminID), access.CreateInvitationRequest{
		AccountID: accountID,
		Email:     "invitee@example.com",
		Role:      access.RoleEditor,
		InvitedBy: adminID,
	})
	require.NoError(t, err)

	inviteeID := uuid.New()
	membership, err := invitations.Accept(ctx, actorFor(inviteeID), created.Token)
	require.NoError(t, err)
	assert.Equal(t, access.RoleEditor, membership.Role)

	resolved, err := members.Resolve(ctx, accountID, inviteeID)
	require.NoError(t, err)
	assert.Equal(t, access.RoleEditor, resolved.Role)

	stored, err := repos.Invitations().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, access.InvitationStatusAccepted, stored.Status)
}

func TestRepositoryManagerRunInTx(t *testing.T) {
	repos, cleanup := setupRepositories(t)
	defer cleanup()

	ctx := context.Background()
	accountID := uuid.New()

	err := repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&access.Membership{
			ID:        uuid.New(),
			AccountID: accountID,
			UserID:    uuid.New(),
			Role:      access.RoleOwner,
		}).Exec(ctx)
		return err
	})
	require.NoError(t, err)

	members, err := repos.Memberships().GetMembers(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = repos.RunInTx(cancelled, nil, func(context.Context, bun.Tx) error { return nil })
	assert.Error(t, err)
}
