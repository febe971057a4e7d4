package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docvault/internal/model"
	"github.com/xxxsen/docvault/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docvault/internal/pkg/errors"
)

type GroupRepo struct {
	db *sql.DB
}

func NewGroupRepo(db *sql.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

func (r *GroupRepo) Create(ctx context.Context, group *model.Group) error {
	data := map[string]interface{}{
		"id":      group.ID,
		"user_id": group.UserID,
		"name":    group.Name,
		"gtype":   group.Gtype,
		"ctime":   group.Ctime,
		"mtime":   group.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("groups", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *GroupRepo) GetByID(ctx context.Context, userID, groupID string) (*model.Group, error) {
	where := map[string]interface{}{"id": groupID, "user_id": userID}
	sqlStr, args, err := builder.BuildSelect("groups", where, []string{"id", "user_id", "name", "gtype", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var group model.Group
	if err := rows.Scan(&group.ID, &group.UserID, &group.Name, &group.Gtype, &group.Ctime, &group.Mtime); err != nil {
		return nil, err
	}
	return &group, nil
}

// List returns all groups of a user with their member counts, newest first.
func (r *GroupRepo) List(ctx context.Context, userID string) ([]model.GroupSummary, error) {
	sqlStr := `
		SELECT g.id, g.name, g.gtype, COUNT(gm.document_id) AS cnt, g.ctime, g.mtime
		FROM groups g
		LEFT JOIN group_members gm ON gm.group_id = g.id
		WHERE g.user_id = ?
		GROUP BY g.id, g.name, g.gtype, g.ctime, g.mtime
		ORDER BY g.mtime DESC
	`
	sqlStr, args := dbutil.Finalize(sqlStr, []interface{}{userID})
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.GroupSummary, 0)
	for rows.Next() {
		var item model.GroupSummary
		if err := rows.Scan(&item.ID, &item.Name, &item.Gtype, &item.MemberCount, &item.Ctime, &item.Mtime); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *GroupRepo) Rename(ctx context.Context, userID, groupID, name string, mtime int64) error {
	where := map[string]interface{}{"id": groupID, "user_id": userID}
	update := map[string]interface{}{"name": name, "mtime": mtime}
	sqlStr, args, err := builder.BuildUpdate("groups", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *GroupRepo) Delete(ctx context.Context, userID, groupID string) error {
	sqlStr, args, err := builder.BuildDelete("groups", map[string]interface{}{"id": groupID, "user_id": userID})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// AddMember is idempotent; adding a document twice keeps the first row.
func (r *GroupRepo) AddMember(ctx context.Context, member *model.GroupMember) error {
	sqlStr := `
		INSERT INTO group_members (group_id, document_id, ctime)
		VALUES (?, ?, ?)
		ON CONFLICT (group_id, document_id) DO NOTHING
	`
	sqlStr, args := dbutil.Finalize(sqlStr, []interface{}{member.GroupID, member.DocumentID, member.Ctime})
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, docID string) error {
	where := map[string]interface{}{"group_id": groupID, "document_id": docID}
	sqlStr, args, err := builder.BuildDelete("group_members", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *GroupRepo) DeleteMembersByGroup(ctx context.Context, groupID string) error {
	sqlStr, args := dbutil.Finalize("DELETE FROM group_members WHERE group_id = ?", []interface{}{groupID})
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *GroupRepo) DeleteMembersByDocument(ctx context.Context, docID string) error {
	sqlStr, args := dbutil.Finalize("DELETE FROM group_members WHERE document_id = ?", []interface{}{docID})
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *GroupRepo) ListMemberDocIDs(ctx context.Context, groupID string) ([]string, error) {
	where := map[string]interface{}{"group_id": groupID, "_orderby": "ctime asc"}
	sqlStr, args, err := builder.BuildSelect("group_members", where, []string{"document_id"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
