package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/Khoadoanduy/fair-share-sub001/internal/repositories/testdb"
	"github.com/shopspring/decimal"
)

func setupLedger(t *testing.T) (*Ledger, *sql.DB) {
	t.Helper()

	db, cleanup, err := testdb.Open()
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(cleanup)

	return New(db), db
}

// seedGroup creates a group with the given amount and a single leader
// (user 1), plus profile rows for users 1..5.
func seedGroup(t *testing.T, db *sql.DB, amount string) int {
	t.Helper()

	for i := 1; i <= 5; i++ {
		_, err := db.Exec("INSERT INTO users (id, email, first_name, last_name) VALUES (?, ?, ?, ?)",
			i, fmt.Sprintf("user%d@example.com", i), "User", "Test")
		if err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	res, err := db.Exec(`INSERT INTO subscription_groups (name, subscription_name, amount, total_mem, amount_each)
		VALUES (?, ?, ?, 1, ?)`, "Netflix crew", "Netflix", amount, amount)
	if err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}
	id, _ := res.LastInsertId()

	_, err = db.Exec("INSERT INTO group_members (group_id, user_id, user_role, joined_at) VALUES (?, 1, ?, '2025-01-01 00:00:00')",
		id, RoleLeader)
	if err != nil {
		t.Fatalf("failed to seed leader: %v", err)
	}
	return int(id)
}

func assertLedgerInvariant(t *testing.T, db *sql.DB, groupID int) {
	t.Helper()

	var amount, each decimal.Decimal
	var totalMem int
	err := db.QueryRow("SELECT amount, total_mem, amount_each FROM subscription_groups WHERE id = ?", groupID).
		Scan(&amount, &totalMem, &each)
	if err != nil {
		t.Fatalf("failed to read group: %v", err)
	}

	var rowCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM group_members WHERE group_id = ?", groupID).Scan(&rowCount); err != nil {
		t.Fatalf("failed to count members: %v", err)
	}

	if totalMem != rowCount {
		t.Errorf("total_mem = %d, but group has %d member rows", totalMem, rowCount)
	}
	want := amount.Div(decimal.NewFromInt(int64(totalMem))).Round(2)
	if !each.Equal(want) {
		t.Errorf("amount_each = %s, want %s (amount %s / %d members)", each, want, amount, totalMem)
	}
}

func TestAddMemberRecomputesShare(t *testing.T) {
	l, db := setupLedger(t)
	groupID := seedGroup(t, db, "30")
	ctx := context.Background()

	_, group, err := l.AddMember(ctx, groupID, 2, RoleMember)
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if group.TotalMem != 2 || !group.AmountEach.Equal(decimal.NewFromInt(15)) {
		t.Errorf("after second member: total_mem=%d amount_each=%s, want 2 and 15", group.TotalMem, group.AmountEach)
	}
	assertLedgerInvariant(t, db, groupID)

	_, group, err = l.AddMember(ctx, groupID, 3, RoleMember)
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if group.TotalMem != 3 || !group.AmountEach.Equal(decimal.NewFromInt(10)) {
		t.Errorf("after third member: total_mem=%d amount_each=%s, want 3 and 10", group.TotalMem, group.AmountEach)
	}
	assertLedgerInvariant(t, db, groupID)
}

func TestAddMemberDuplicate(t *testing.T) {
	l, db := setupLedger(t)
	groupID := seedGroup(t, db, "30")
	ctx := context.Background()

	if _, _, err := l.AddMember(ctx, groupID, 2, RoleMember); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	_, _, err := l.AddMember(ctx, groupID, 2, RoleMember)
	if err != ErrAlreadyMember {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	group, err := l.Group(ctx, groupID)
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if group.TotalMem != 2 {
		t.Errorf("duplicate add changed total_mem to %d", group.TotalMem)
	}
	assertLedgerInvariant(t, db, groupID)
}

func TestAddMemberGroupNotFound(t *testing.T) {
	l, _ := setupLedger(t)

	_, _, err := l.AddMember(context.Background(), 999, 2, RoleMember)
	if err != ErrGroupNotFound {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}
}

func TestRemoveMemberRecomputesShare(t *testing.T) {
	l, db := setupLedger(t)
	groupID := seedGroup(t, db, "30")
	ctx := context.Background()

	l.AddMember(ctx, groupID, 2, RoleMember)
	l.AddMember(ctx, groupID, 3, RoleMember)

	member, group, err := l.RemoveMember(ctx, groupID, 2)
	if err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if member.UserID != 2 {
		t.Errorf("removed member user_id = %d, want 2", member.UserID)
	}
	if group.TotalMem != 2 || !group.AmountEach.Equal(decimal.NewFromInt(15)) {
		t.Errorf("after removal: total_mem=%d amount_each=%s, want 2 and 15", group.TotalMem, group.AmountEach)
	}
	assertLedgerInvariant(t, db, groupID)
}

func TestRemoveMemberNotAMember(t *testing.T) {
	l, db := setupLedger(t)
	groupID := seedGroup(t, db, "30")

	_, _, err := l.RemoveMember(context.Background(), groupID, 4)
	if err != ErrNotAMember {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
	assertLedgerInvariant(t, db, groupID)
}

func TestRemoveLastMemberBlocked(t *testing.T) {
	l, db := setupLedger(t)
	groupID := seedGroup(t, db, "30")

	_, _, err := l.RemoveMember(context.Background(), groupID, 1)
	if err != ErrLastMember {
		t.Fatalf("expected ErrLastMember, got %v", err)
	}

	group, err := l.Group(context.Background(), groupID)
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if group.TotalMem != 1 {
		t.Errorf("blocked removal changed total_mem to %d", group.TotalMem)
	}
}

func TestConcurrentAddMembers(t *testing.T) {
	l, db := setupLedger(t)
	groupID := seedGroup(t, db, "30")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, userID := range []int{2, 3} {
		wg.Add(1)
		go func(uid int) {
			defer wg.Done()
			_, _, err := l.AddMember(context.Background(), groupID, uid, RoleMember)
			errs <- err
		}(userID)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent AddMember failed: %v", err)
		}
	}

	group, err := l.Group(context.Background(), groupID)
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if group.TotalMem != 3 {
		t.Errorf("total_mem = %d after concurrent adds, want 3 (lost update)", group.TotalMem)
	}
	if !group.AmountEach.Equal(decimal.NewFromInt(10)) {
		t.Errorf("amount_each = %s after concurrent adds, want 10", group.AmountEach)
	}
	assertLedgerInvariant(t, db, groupID)
}

func TestRole(t *testing.T) {
	l, db := setupLedger(t)
	groupID := seedGroup(t, db, "30")
	ctx := context.Background()

	l.AddMember(ctx, groupID, 2, RoleMember)

	tests := []struct {
		name     string
		userID   int
		isMember bool
		isLeader bool
	}{
		{"leader", 1, true, true},
		{"plain member", 2, true, false},
		{"outsider", 9, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isMember, isLeader, err := l.Role(ctx, groupID, tt.userID)
			if err != nil {
				t.Fatalf("Role failed: %v", err)
			}
			if isMember != tt.isMember || isLeader != tt.isLeader {
				t.Errorf("Role = (%v, %v), want (%v, %v)", isMember, isLeader, tt.isMember, tt.isLeader)
			}
		})
	}
}

func TestMembersOrderedWithProfiles(t *testing.T) {
	l, db := setupLedger(t)
	groupID := seedGroup(t, db, "30")
	ctx := context.Background()

	l.AddMember(ctx, groupID, 2, RoleMember)
	l.AddMember(ctx, groupID, 3, RoleMember)

	members, err := l.Members(ctx, groupID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3", len(members))
	}
	if members[0].UserID != 1 || members[0].UserRole != RoleLeader {
		t.Errorf("first member = user %d (%s), want leader user 1", members[0].UserID, members[0].UserRole)
	}
	for _, m := range members {
		if m.Email == "" {
			t.Errorf("member %d missing embedded profile", m.UserID)
		}
	}
}
