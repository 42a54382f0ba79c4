// Package ledger keeps a group's member count and per-member share
// consistent as members join and leave.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Khoadoanduy/fair-share-sub001/internal/grouplock"
	"github.com/Khoadoanduy/fair-share-sub001/internal/models"
	"github.com/Khoadoanduy/fair-share-sub001/pkg/utils"
	"github.com/shopspring/decimal"
)

const (
	RoleLeader = "leader"
	RoleMember = "member"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrAlreadyMember = errors.New("user is already a member of this group")
	ErrNotAMember    = errors.New("user is not a member of this group")
	ErrLastMember    = errors.New("cannot remove the last member of a group")
)

type Ledger struct {
	db    *sql.DB
	locks *grouplock.Registry
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, locks: grouplock.Default}
}

// AddMember inserts a membership row and recomputes total_mem/amount_each
// inside one transaction. The group lock serializes the read-modify-write
// against concurrent membership changes on the same group.
func (l *Ledger) AddMember(ctx context.Context, groupID, userID int, role string) (*models.GroupMember, *models.Group, error) {
	if role != RoleLeader {
		role = RoleMember
	}

	l.locks.Lock(groupID)
	defer l.locks.Unlock(groupID)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to start transaction")
	}
	defer tx.Rollback()

	group, err := groupForUpdate(ctx, tx, groupID)
	if err != nil {
		return nil, nil, err
	}

	var exists bool
	err = tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?)", groupID, userID).Scan(&exists)
	if err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to check membership")
	}
	if exists {
		return nil, nil, ErrAlreadyMember
	}

	joinedAt := time.Now().UTC().Format("2006-01-02 15:04:05")
	res, err := tx.ExecContext(ctx, "INSERT INTO group_members (group_id, user_id, user_role, joined_at) VALUES (?, ?, ?, ?)",
		groupID, userID, role, joinedAt)
	if err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to add member")
	}
	memberID, err := res.LastInsertId()
	if err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to read new member id")
	}

	group.TotalMem++
	group.AmountEach = group.Amount.Div(decimal.NewFromInt(int64(group.TotalMem))).Round(2)

	_, err = tx.ExecContext(ctx, "UPDATE subscription_groups SET total_mem = ?, amount_each = ? WHERE id = ?",
		group.TotalMem, group.AmountEach, groupID)
	if err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to update group share")
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to commit transaction")
	}

	member := &models.GroupMember{
		ID:       int(memberID),
		GroupID:  groupID,
		UserID:   userID,
		UserRole: role,
		JoinedAt: sql.NullString{String: joinedAt, Valid: true},
	}
	return member, group, nil
}

// RemoveMember deletes a membership row and recomputes the share. Removing
// the last member is refused; disbanding a group is a separate operation.
func (l *Ledger) RemoveMember(ctx context.Context, groupID, userID int) (*models.GroupMember, *models.Group, error) {
	l.locks.Lock(groupID)
	defer l.locks.Unlock(groupID)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to start transaction")
	}
	defer tx.Rollback()

	group, err := groupForUpdate(ctx, tx, groupID)
	if err != nil {
		return nil, nil, err
	}

	var member models.GroupMember
	err = tx.QueryRowContext(ctx, "SELECT id, user_role, joined_at FROM group_members WHERE group_id = ? AND user_id = ?", groupID, userID).
		Scan(&member.ID, &member.UserRole, &member.JoinedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrNotAMember
		}
		return nil, nil, utils.ErrorHandler(err, "failed to look up member")
	}
	member.GroupID = groupID
	member.UserID = userID

	if group.TotalMem <= 1 {
		return nil, nil, ErrLastMember
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM group_members WHERE id = ?", member.ID); err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to remove member")
	}

	// A departed member's confirm-share row must go with them: a leftover
	// pending row would block every future confirmation round, and a
	// leftover approved row would carry over to a rejoiner.
	if _, err := tx.ExecContext(ctx, "DELETE FROM confirm_shares WHERE group_id = ? AND user_id = ?", groupID, userID); err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to clear confirm share")
	}

	group.TotalMem--
	group.AmountEach = group.Amount.Div(decimal.NewFromInt(int64(group.TotalMem))).Round(2)

	_, err = tx.ExecContext(ctx, "UPDATE subscription_groups SET total_mem = ?, amount_each = ? WHERE id = ?",
		group.TotalMem, group.AmountEach, groupID)
	if err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to update group share")
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, utils.ErrorHandler(err, "failed to commit transaction")
	}

	return &member, group, nil
}

// Members returns the group's roster joined with user profiles, ordered by
// join time.
func (l *Ledger) Members(ctx context.Context, groupID int) ([]models.MemberWithProfile, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT gm.id, gm.group_id, gm.user_id, gm.user_role, gm.joined_at,
		       u.email, u.first_name, u.last_name
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = ?
		ORDER BY gm.joined_at, gm.id`, groupID)
	if err != nil {
		return nil, utils.ErrorHandler(err, "failed to fetch group members")
	}
	defer rows.Close()

	var members []models.MemberWithProfile
	for rows.Next() {
		var m models.MemberWithProfile
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.UserRole, &m.JoinedAt, &m.Email, &m.FirstName, &m.LastName); err != nil {
			return nil, utils.ErrorHandler(err, "failed to scan group member")
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Role reports membership presence and leadership. Absence is a valid
// result, not an error.
func (l *Ledger) Role(ctx context.Context, groupID, userID int) (isMember, isLeader bool, err error) {
	var role string
	err = l.db.QueryRowContext(ctx, "SELECT user_role FROM group_members WHERE group_id = ? AND user_id = ?", groupID, userID).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, false, nil
		}
		return false, false, utils.ErrorHandler(err, "failed to look up role")
	}
	return true, role == RoleLeader, nil
}

// Group returns the current group snapshot.
func (l *Ledger) Group(ctx context.Context, groupID int) (*models.Group, error) {
	return groupForUpdate(ctx, l.db, groupID)
}

// GroupByCard resolves the group that owns a virtual card. Used by the
// authorization path; a miss returns ErrGroupNotFound.
func (l *Ledger) GroupByCard(ctx context.Context, cardID string) (*models.Group, error) {
	var g models.Group
	err := l.db.QueryRowContext(ctx, `
		SELECT id, name, subscription_name, amount, total_mem, amount_each, virtual_card_id
		FROM subscription_groups WHERE virtual_card_id = ?`, cardID).
		Scan(&g.ID, &g.Name, &g.SubscriptionName, &g.Amount, &g.TotalMem, &g.AmountEach, &g.VirtualCardID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGroupNotFound
		}
		return nil, utils.ErrorHandler(err, "failed to look up group by card")
	}
	return &g, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func groupForUpdate(ctx context.Context, q querier, groupID int) (*models.Group, error) {
	var g models.Group
	err := q.QueryRowContext(ctx, `
		SELECT id, name, subscription_name, amount, total_mem, amount_each, virtual_card_id
		FROM subscription_groups WHERE id = ?`, groupID).
		Scan(&g.ID, &g.Name, &g.SubscriptionName, &g.Amount, &g.TotalMem, &g.AmountEach, &g.VirtualCardID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGroupNotFound
		}
		return nil, utils.ErrorHandler(err, "failed to retrieve group")
	}
	return &g, nil
}
