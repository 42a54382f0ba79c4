package group

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Khoadoanduy/fair-share-sub001/internal/ledger"
	"github.com/Khoadoanduy/fair-share-sub001/internal/repositories/sqlconnect"
	"github.com/Khoadoanduy/fair-share-sub001/internal/services"
	"github.com/Khoadoanduy/fair-share-sub001/pkg/utils"
	"github.com/shopspring/decimal"
)

// CardHandler serves POST /group/{groupId}/card: issues the group's virtual
// card, reusing the cached cardholder and card ids so nothing is created
// twice.
func CardHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, err := strconv.Atoi(r.PathValue("groupId"))
	if err != nil {
		utils.WriteError(w, "invalid group ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	group, err := ledger.New(db).Group(ctx, groupID)
	if err != nil {
		if err == ledger.ErrGroupNotFound {
			utils.WriteError(w, "group not found", http.StatusNotFound)
			return
		}
		utils.Logger.Errorf("failed to retrieve group: %v", err)
		utils.WriteError(w, "failed to retrieve group", http.StatusInternalServerError)
		return
	}

	if group.VirtualCardID.Valid && group.VirtualCardID.String != "" {
		utils.WriteJSON(w, map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"virtual_card_id": group.VirtualCardID.String,
				"created":         false,
			},
		})
		return
	}

	var leaderID int
	var firstName, lastName, email string
	var cardholderID sql.NullString
	err = db.QueryRowContext(ctx, `
		SELECT u.id, u.first_name, u.last_name, u.email, u.cardholder_id
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = ? AND gm.user_role = ?
		ORDER BY gm.id LIMIT 1`, groupID, ledger.RoleLeader).
		Scan(&leaderID, &firstName, &lastName, &email, &cardholderID)
	if err != nil {
		if err == sql.ErrNoRows {
			utils.WriteError(w, "group has no leader", http.StatusConflict)
			return
		}
		utils.Logger.Errorf("failed to look up group leader: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	stripe, err := services.NewStripeClient()
	if err != nil {
		utils.Logger.Errorf("stripe client unavailable: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !cardholderID.Valid || cardholderID.String == "" {
		name := strings.TrimSpace(firstName + " " + lastName)
		id, err := stripe.CreateCardholder(name, email)
		if err != nil {
			utils.Logger.Errorf("failed to create cardholder for user %d: %v", leaderID, err)
			utils.WriteError(w, "failed to create cardholder", http.StatusBadGateway)
			return
		}
		if _, err := db.ExecContext(ctx, "UPDATE users SET cardholder_id = ? WHERE id = ?", id, leaderID); err != nil {
			utils.Logger.Errorf("failed to cache cardholder id: %v", err)
			utils.WriteError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		cardholderID = sql.NullString{String: id, Valid: true}
	}

	limitCents := group.Amount.Mul(decimal.NewFromInt(100)).IntPart()
	cardID, err := stripe.CreateVirtualCard(cardholderID.String, limitCents)
	if err != nil {
		utils.Logger.Errorf("failed to create virtual card for group %d: %v", groupID, err)
		utils.WriteError(w, "failed to create virtual card", http.StatusBadGateway)
		return
	}

	if _, err := db.ExecContext(ctx, "UPDATE subscription_groups SET virtual_card_id = ? WHERE id = ?", cardID, groupID); err != nil {
		utils.Logger.Errorf("failed to cache virtual card id: %v", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.Logger.Infof("virtual card %s issued for group %d", cardID, groupID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"virtual_card_id": cardID,
			"created":         true,
		},
	})
}
