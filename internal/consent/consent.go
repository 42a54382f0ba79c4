// Package consent tracks per-member share approval for a group's current
// confirmation round. A charge cycle only proceeds once every member has
// approved; the billing trigger itself lives outside this service.
package consent

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Khoadoanduy/fair-share-sub001/internal/grouplock"
	"github.com/Khoadoanduy/fair-share-sub001/internal/ledger"
	"github.com/Khoadoanduy/fair-share-sub001/pkg/utils"
	"github.com/google/uuid"
)

var (
	ErrNoMembers       = errors.New("group has no members")
	ErrRoundActive     = errors.New("a confirmation round is already in progress")
	ErrRequestNotFound = errors.New("no share confirmation request found")
)

type Gate struct {
	db    *sql.DB
	locks *grouplock.Registry
}

func New(db *sql.DB) *Gate {
	return &Gate{db: db, locks: grouplock.Default}
}

// Recipient is a member who should be notified that their approval is
// wanted.
type Recipient struct {
	UserID    int
	Email     string
	FirstName string
}

// InitiateRound creates one confirm-share row per current member, tagged
// with a fresh round id. Leaders are seeded pre-approved. A round that is
// still collecting approvals cannot be re-initiated; a fully approved prior
// round is superseded. Returns the round id and the members still owing an
// approval, for notification.
func (g *Gate) InitiateRound(ctx context.Context, groupID int) (string, []Recipient, error) {
	g.locks.Lock(groupID)
	defer g.locks.Unlock(groupID)

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, utils.ErrorHandler(err, "failed to start transaction")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT gm.user_id, gm.user_role, u.email, u.first_name
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = ?
		ORDER BY gm.id`, groupID)
	if err != nil {
		return "", nil, utils.ErrorHandler(err, "failed to fetch group members")
	}

	type rosterEntry struct {
		userID    int
		role      string
		email     string
		firstName string
	}
	var roster []rosterEntry
	for rows.Next() {
		var e rosterEntry
		if err := rows.Scan(&e.userID, &e.role, &e.email, &e.firstName); err != nil {
			rows.Close()
			return "", nil, utils.ErrorHandler(err, "failed to scan group member")
		}
		roster = append(roster, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", nil, utils.ErrorHandler(err, "failed to iterate group members")
	}

	if len(roster) == 0 {
		return "", nil, ErrNoMembers
	}

	var total, approved int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(status), 0) FROM confirm_shares WHERE group_id = ?", groupID).
		Scan(&total, &approved)
	if err != nil {
		return "", nil, utils.ErrorHandler(err, "failed to check existing round")
	}
	if total > 0 {
		if approved < total {
			return "", nil, ErrRoundActive
		}
		// Previous round fully approved: supersede it.
		if _, err := tx.ExecContext(ctx, "DELETE FROM confirm_shares WHERE group_id = ?", groupID); err != nil {
			return "", nil, utils.ErrorHandler(err, "failed to supersede previous round")
		}
	}

	roundID := uuid.NewString()
	createdAt := time.Now().UTC().Format("2006-01-02 15:04:05")

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO confirm_shares (group_id, round_id, user_id, status, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return "", nil, utils.ErrorHandler(err, "failed to prepare insert")
	}
	defer stmt.Close()

	var recipients []Recipient
	for _, e := range roster {
		preApproved := e.role == ledger.RoleLeader
		if _, err := stmt.ExecContext(ctx, groupID, roundID, e.userID, preApproved, createdAt); err != nil {
			return "", nil, utils.ErrorHandler(err, "failed to create confirm share")
		}
		if !preApproved {
			recipients = append(recipients, Recipient{UserID: e.userID, Email: e.email, FirstName: e.firstName})
		}
	}

	if err := tx.Commit(); err != nil {
		return "", nil, utils.ErrorHandler(err, "failed to commit transaction")
	}
	return roundID, recipients, nil
}

// HasPendingRound reports whether any confirm-share request exists for the
// group.
func (g *Gate) HasPendingRound(ctx context.Context, groupID int) (bool, error) {
	var exists bool
	err := g.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM confirm_shares WHERE group_id = ?)", groupID).Scan(&exists)
	if err != nil {
		return false, utils.ErrorHandler(err, "failed to check confirm shares")
	}
	return exists, nil
}

// Status returns whether the member has been asked at all, and if so
// whether they have approved. "Never asked" is a valid result, distinct
// from a pending false.
func (g *Gate) Status(ctx context.Context, groupID, userID int) (requested, approved bool, err error) {
	err = g.db.QueryRowContext(ctx,
		"SELECT status FROM confirm_shares WHERE group_id = ? AND user_id = ?", groupID, userID).Scan(&approved)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, false, nil
		}
		return false, false, utils.ErrorHandler(err, "failed to read confirm share")
	}
	return true, approved, nil
}

// Approve marks the member's share as accepted. The transition is one-way
// and idempotent; approving an already approved share is a no-op success.
func (g *Gate) Approve(ctx context.Context, groupID, userID int) error {
	var status bool
	err := g.db.QueryRowContext(ctx,
		"SELECT status FROM confirm_shares WHERE group_id = ? AND user_id = ?", groupID, userID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrRequestNotFound
		}
		return utils.ErrorHandler(err, "failed to read confirm share")
	}
	if status {
		return nil
	}

	_, err = g.db.ExecContext(ctx,
		"UPDATE confirm_shares SET status = ? WHERE group_id = ? AND user_id = ?", true, groupID, userID)
	if err != nil {
		return utils.ErrorHandler(err, "failed to approve share")
	}
	return nil
}

// AllApproved is true iff a round exists and every current member holds an
// approved row in it. A member added after the round started has no row and
// keeps the round incomplete until a new round includes them.
func (g *Gate) AllApproved(ctx context.Context, groupID int) (bool, error) {
	hasRound, err := g.HasPendingRound(ctx, groupID)
	if err != nil {
		return false, err
	}
	if !hasRound {
		return false, nil
	}

	var unapproved int
	err = g.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM group_members gm
		WHERE gm.group_id = ?
		AND NOT EXISTS (
			SELECT 1 FROM confirm_shares cs
			WHERE cs.group_id = gm.group_id AND cs.user_id = gm.user_id AND cs.status = 1
		)`, groupID).Scan(&unapproved)
	if err != nil {
		return false, utils.ErrorHandler(err, "failed to count unapproved members")
	}
	return unapproved == 0, nil
}

// PendingApproval is an outstanding share approval, joined with what the
// reminder email needs.
type PendingApproval struct {
	GroupID    int
	GroupName  string
	AmountEach string
	UserID     int
	Email      string
	FirstName  string
}

// PendingApprovals lists every unapproved share across all groups. Consumed
// by the daily reminder job.
func (g *Gate) PendingApprovals(ctx context.Context) ([]PendingApproval, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT cs.group_id, sg.name, sg.amount_each, cs.user_id, u.email, u.first_name
		FROM confirm_shares cs
		JOIN subscription_groups sg ON sg.id = cs.group_id
		JOIN users u ON u.id = cs.user_id
		WHERE cs.status = 0
		ORDER BY cs.group_id, cs.user_id`)
	if err != nil {
		return nil, utils.ErrorHandler(err, "failed to fetch pending approvals")
	}
	defer rows.Close()

	var pending []PendingApproval
	for rows.Next() {
		var p PendingApproval
		if err := rows.Scan(&p.GroupID, &p.GroupName, &p.AmountEach, &p.UserID, &p.Email, &p.FirstName); err != nil {
			return nil, utils.ErrorHandler(err, "failed to scan pending approval")
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
