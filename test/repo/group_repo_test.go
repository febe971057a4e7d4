package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docvault/internal/model"
	appErr "github.com/xxxsen/docvault/internal/pkg/errors"
	"github.com/xxxsen/docvault/internal/pkg/timeutil"
	"github.com/xxxsen/docvault/internal/repo"
	"github.com/xxxsen/docvault/test/testutil"
)

func TestGroupRepoCRUD(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	const userID = "group-crud-user"
	testutil.WipeUser(t, conn, userID)
	t.Cleanup(func() { testutil.WipeUser(t, conn, userID) })

	groups := repo.NewGroupRepo(conn)
	ctx := context.Background()
	now := timeutil.NowUnix()

	group := &model.Group{ID: "grp-crud-1", UserID: userID, Name: "research", Gtype: model.GroupTypeManual, Ctime: now, Mtime: now}
	require.NoError(t, groups.Create(ctx, group))
	require.ErrorIs(t, groups.Create(ctx, group), appErr.ErrConflict)

	fetched, err := groups.GetByID(ctx, userID, "grp-crud-1")
	require.NoError(t, err)
	require.Equal(t, "research", fetched.Name)

	_, err = groups.GetByID(ctx, "someone-else", "grp-crud-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, groups.Rename(ctx, userID, "grp-crud-1", "papers", now+1))
	fetched, err = groups.GetByID(ctx, userID, "grp-crud-1")
	require.NoError(t, err)
	require.Equal(t, "papers", fetched.Name)
	require.ErrorIs(t, groups.Rename(ctx, "someone-else", "grp-crud-1", "nope", now+1), appErr.ErrNotFound)

	require.NoError(t, groups.Delete(ctx, userID, "grp-crud-1"))
	require.ErrorIs(t, groups.Delete(ctx, userID, "grp-crud-1"), appErr.ErrNotFound)
}

func TestGroupRepoMembership(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	const userID = "group-member-user"
	testutil.WipeUser(t, conn, userID)
	t.Cleanup(func() { testutil.WipeUser(t, conn, userID) })

	groups := repo.NewGroupRepo(conn)
	docs := repo.NewDocumentRepo(conn)
	ctx := context.Background()
	now := timeutil.NowUnix()

	require.NoError(t, groups.Create(ctx, &model.Group{ID: "grp-mem-1", UserID: userID, Name: "reading", Gtype: model.GroupTypeManual, Ctime: now, Mtime: now}))
	for _, id := range []string{"grp-mem-doc-1", "grp-mem-doc-2"} {
		require.NoError(t, docs.Create(ctx, newTestDocument(id, userID, now)))
	}

	require.NoError(t, groups.AddMember(ctx, &model.GroupMember{GroupID: "grp-mem-1", DocumentID: "grp-mem-doc-1", Ctime: now}))
	require.NoError(t, groups.AddMember(ctx, &model.GroupMember{GroupID: "grp-mem-1", DocumentID: "grp-mem-doc-2", Ctime: now + 1}))
	// Re-adding a member is a no-op, not an error.
	require.NoError(t, groups.AddMember(ctx, &model.GroupMember{GroupID: "grp-mem-1", DocumentID: "grp-mem-doc-1", Ctime: now + 2}))

	ids, err := groups.ListMemberDocIDs(ctx, "grp-mem-1")
	require.NoError(t, err)
	require.Equal(t, []string{"grp-mem-doc-1", "grp-mem-doc-2"}, ids)

	summaries, err := groups.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, 2, summaries[0].MemberCount)

	require.NoError(t, groups.RemoveMember(ctx, "grp-mem-1", "grp-mem-doc-2"))
	ids, err = groups.ListMemberDocIDs(ctx, "grp-mem-1")
	require.NoError(t, err)
	require.Equal(t, []string{"grp-mem-doc-1"}, ids)

	require.NoError(t, groups.DeleteMembersByDocument(ctx, "grp-mem-doc-1"))
	require.NoError(t, groups.DeleteMembersByGroup(ctx, "grp-mem-1"))
	ids, err = groups.ListMemberDocIDs(ctx, "grp-mem-1")
	require.NoError(t, err)
	require.Empty(t, ids)
}
