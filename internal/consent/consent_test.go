package consent

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/Khoadoanduy/fair-share-sub001/internal/ledger"
	"github.com/Khoadoanduy/fair-share-sub001/internal/repositories/testdb"
)

// setupGroup seeds a group of three (user 1 leads, users 2 and 3 joined via
// the ledger) and returns the gate plus the group id.
func setupGroup(t *testing.T) (*Gate, *ledger.Ledger, *sql.DB, int) {
	t.Helper()

	db, cleanup, err := testdb.Open()
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(cleanup)

	for i := 1; i <= 5; i++ {
		_, err := db.Exec("INSERT INTO users (id, email, first_name, last_name) VALUES (?, ?, ?, ?)",
			i, fmt.Sprintf("user%d@example.com", i), "User", "Test")
		if err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	res, err := db.Exec(`INSERT INTO subscription_groups (name, subscription_name, amount, total_mem, amount_each)
		VALUES ('Netflix crew', 'Netflix', '30', 1, '30')`)
	if err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}
	id, _ := res.LastInsertId()
	groupID := int(id)

	if _, err := db.Exec("INSERT INTO group_members (group_id, user_id, user_role, joined_at) VALUES (?, 1, ?, '2025-01-01 00:00:00')",
		groupID, ledger.RoleLeader); err != nil {
		t.Fatalf("failed to seed leader: %v", err)
	}

	l := ledger.New(db)
	ctx := context.Background()
	for _, uid := range []int{2, 3} {
		if _, _, err := l.AddMember(ctx, groupID, uid, ledger.RoleMember); err != nil {
			t.Fatalf("failed to add member %d: %v", uid, err)
		}
	}

	return New(db), l, db, groupID
}

func TestInitiateRoundSeedsLeaderApproved(t *testing.T) {
	g, _, _, groupID := setupGroup(t)
	ctx := context.Background()

	roundID, recipients, err := g.InitiateRound(ctx, groupID)
	if err != nil {
		t.Fatalf("InitiateRound failed: %v", err)
	}
	if roundID == "" {
		t.Error("expected a round id")
	}
	if len(recipients) != 2 {
		t.Errorf("got %d notification recipients, want 2 (leader excluded)", len(recipients))
	}

	requested, approved, err := g.Status(ctx, groupID, 1)
	if err != nil || !requested || !approved {
		t.Errorf("leader status = (requested=%v approved=%v err=%v), want pre-approved", requested, approved, err)
	}
	for _, uid := range []int{2, 3} {
		requested, approved, err := g.Status(ctx, groupID, uid)
		if err != nil || !requested || approved {
			t.Errorf("member %d status = (requested=%v approved=%v err=%v), want pending", uid, requested, approved, err)
		}
	}
}

func TestInitiateRoundNoMembers(t *testing.T) {
	g, _, db, _ := setupGroup(t)

	res, err := db.Exec(`INSERT INTO subscription_groups (name, subscription_name, amount, total_mem, amount_each)
		VALUES ('Empty', 'Spotify', '12', 0, '0')`)
	if err != nil {
		t.Fatalf("failed to seed empty group: %v", err)
	}
	emptyID, _ := res.LastInsertId()

	if _, _, err := g.InitiateRound(context.Background(), int(emptyID)); err != ErrNoMembers {
		t.Fatalf("expected ErrNoMembers, got %v", err)
	}
}

func TestInitiateRoundGuardsDoubleInitiation(t *testing.T) {
	g, _, db, groupID := setupGroup(t)
	ctx := context.Background()

	if _, _, err := g.InitiateRound(ctx, groupID); err != nil {
		t.Fatalf("InitiateRound failed: %v", err)
	}
	if _, _, err := g.InitiateRound(ctx, groupID); err != ErrRoundActive {
		t.Fatalf("expected ErrRoundActive, got %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM confirm_shares WHERE group_id = ?", groupID).Scan(&count); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 3 {
		t.Errorf("got %d confirm share rows, want 3 (no duplicates)", count)
	}
}

func TestInitiateRoundConcurrent(t *testing.T) {
	g, _, db, groupID := setupGroup(t)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := g.InitiateRound(context.Background(), groupID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var okCount, activeCount int
	for err := range errs {
		switch err {
		case nil:
			okCount++
		case ErrRoundActive:
			activeCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 || activeCount != 1 {
		t.Errorf("got %d successes and %d ErrRoundActive, want exactly one of each", okCount, activeCount)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM confirm_shares WHERE group_id = ?", groupID).Scan(&count); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 3 {
		t.Errorf("got %d confirm share rows after race, want 3", count)
	}
}

func TestApproveIdempotent(t *testing.T) {
	g, _, _, groupID := setupGroup(t)
	ctx := context.Background()

	if _, _, err := g.InitiateRound(ctx, groupID); err != nil {
		t.Fatalf("InitiateRound failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := g.Approve(ctx, groupID, 2); err != nil {
			t.Fatalf("Approve call %d failed: %v", i+1, err)
		}
		_, approved, err := g.Status(ctx, groupID, 2)
		if err != nil || !approved {
			t.Errorf("after approve call %d: approved=%v err=%v", i+1, approved, err)
		}
	}
}

func TestApproveWithoutRequest(t *testing.T) {
	g, _, _, groupID := setupGroup(t)

	if err := g.Approve(context.Background(), groupID, 2); err != ErrRequestNotFound {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestStatusNotYetRequested(t *testing.T) {
	g, _, _, groupID := setupGroup(t)

	requested, approved, err := g.Status(context.Background(), groupID, 2)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if requested || approved {
		t.Errorf("got (requested=%v approved=%v), want a distinct not-yet-requested signal", requested, approved)
	}
}

func TestAllApprovedProgression(t *testing.T) {
	g, _, _, groupID := setupGroup(t)
	ctx := context.Background()

	all, err := g.AllApproved(ctx, groupID)
	if err != nil || all {
		t.Fatalf("before any round: all=%v err=%v, want false", all, err)
	}

	if _, _, err := g.InitiateRound(ctx, groupID); err != nil {
		t.Fatalf("InitiateRound failed: %v", err)
	}

	if err := g.Approve(ctx, groupID, 2); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	all, err = g.AllApproved(ctx, groupID)
	if err != nil || all {
		t.Fatalf("with user 3 pending: all=%v err=%v, want false", all, err)
	}

	if err := g.Approve(ctx, groupID, 3); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	all, err = g.AllApproved(ctx, groupID)
	if err != nil || !all {
		t.Fatalf("with everyone approved: all=%v err=%v, want true", all, err)
	}
}

func TestAllApprovedWithMidRoundJoiner(t *testing.T) {
	g, l, _, groupID := setupGroup(t)
	ctx := context.Background()

	if _, _, err := g.InitiateRound(ctx, groupID); err != nil {
		t.Fatalf("InitiateRound failed: %v", err)
	}
	g.Approve(ctx, groupID, 2)
	g.Approve(ctx, groupID, 3)

	// A member joining mid-round has no confirm share row and must hold the
	// round open.
	if _, _, err := l.AddMember(ctx, groupID, 4, ledger.RoleMember); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	all, err := g.AllApproved(ctx, groupID)
	if err != nil {
		t.Fatalf("AllApproved failed: %v", err)
	}
	if all {
		t.Error("round reported complete despite an unconfirmed new member")
	}
}

func TestMidRoundLeaverDoesNotBlockNextRound(t *testing.T) {
	g, l, db, groupID := setupGroup(t)
	ctx := context.Background()

	if _, _, err := g.InitiateRound(ctx, groupID); err != nil {
		t.Fatalf("InitiateRound failed: %v", err)
	}
	if err := g.Approve(ctx, groupID, 2); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	// User 3 leaves without ever approving; their pending row must go with
	// them or it blocks every future round.
	if _, _, err := l.RemoveMember(ctx, groupID, 3); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	var leftover int
	if err := db.QueryRow("SELECT COUNT(*) FROM confirm_shares WHERE group_id = ? AND user_id = 3", groupID).Scan(&leftover); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if leftover != 0 {
		t.Errorf("found %d confirm share rows for the departed member", leftover)
	}

	all, err := g.AllApproved(ctx, groupID)
	if err != nil || !all {
		t.Fatalf("with all remaining members approved: all=%v err=%v, want true", all, err)
	}

	if _, _, err := g.InitiateRound(ctx, groupID); err != nil {
		t.Fatalf("next round blocked after a mid-round leaver: %v", err)
	}
}

func TestRemovedMemberCannotApprove(t *testing.T) {
	g, l, _, groupID := setupGroup(t)
	ctx := context.Background()

	if _, _, err := g.InitiateRound(ctx, groupID); err != nil {
		t.Fatalf("InitiateRound failed: %v", err)
	}
	if err := g.Approve(ctx, groupID, 2); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if _, _, err := l.RemoveMember(ctx, groupID, 2); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	requested, approved, err := g.Status(ctx, groupID, 2)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if requested || approved {
		t.Errorf("departed member still has a confirm share: requested=%v approved=%v", requested, approved)
	}
	if err := g.Approve(ctx, groupID, 2); err != ErrRequestNotFound {
		t.Fatalf("expected ErrRequestNotFound for a departed member, got %v", err)
	}

	// Rejoining starts clean: no inherited approval until the next round
	// includes them.
	if _, _, err := l.AddMember(ctx, groupID, 2, ledger.RoleMember); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	requested, approved, err = g.Status(ctx, groupID, 2)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if requested || approved {
		t.Errorf("rejoiner inherited a confirm share: requested=%v approved=%v", requested, approved)
	}
}

func TestInitiateRoundSupersedesCompletedRound(t *testing.T) {
	g, _, db, groupID := setupGroup(t)
	ctx := context.Background()

	firstRound, _, err := g.InitiateRound(ctx, groupID)
	if err != nil {
		t.Fatalf("InitiateRound failed: %v", err)
	}
	g.Approve(ctx, groupID, 2)
	g.Approve(ctx, groupID, 3)

	secondRound, _, err := g.InitiateRound(ctx, groupID)
	if err != nil {
		t.Fatalf("second InitiateRound failed: %v", err)
	}
	if secondRound == firstRound {
		t.Error("new round reused the previous round id")
	}

	var stale int
	if err := db.QueryRow("SELECT COUNT(*) FROM confirm_shares WHERE group_id = ? AND round_id = ?", groupID, firstRound).Scan(&stale); err != nil {
		t.Fatalf("failed to count stale rows: %v", err)
	}
	if stale != 0 {
		t.Errorf("found %d rows from the superseded round", stale)
	}

	// Statuses reset: only the leader is approved again.
	all, err := g.AllApproved(ctx, groupID)
	if err != nil || all {
		t.Errorf("fresh round reported complete: all=%v err=%v", all, err)
	}
}
