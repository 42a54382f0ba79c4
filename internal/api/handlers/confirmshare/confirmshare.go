package confirmshare

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Khoadoanduy/fair-share-sub001/internal/consent"
	"github.com/Khoadoanduy/fair-share-sub001/internal/ledger"
	"github.com/Khoadoanduy/fair-share-sub001/internal/repositories/sqlconnect"
	"github.com/Khoadoanduy/fair-share-sub001/pkg/utils"
)

// RoundHandler serves /confirmShare/{groupId}: POST starts a confirmation
// round, GET reports whether one has been sent.
func RoundHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		initiateRound(w, r)
	case http.MethodGet:
		hasPendingRound(w, r)
	default:
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// MemberHandler serves /confirmShare/{groupId}/{userId}: GET reads a
// member's approval state, PUT approves their share.
func MemberHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		getStatus(w, r)
	case http.MethodPut:
		approve(w, r)
	default:
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func groupIDFromPath(w http.ResponseWriter, r *http.Request) (int, bool) {
	groupID, err := strconv.Atoi(r.PathValue("groupId"))
	if err != nil {
		utils.WriteError(w, "invalid group ID", http.StatusBadRequest)
		return 0, false
	}
	return groupID, true
}

func initiateRound(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, ok := groupIDFromPath(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	roundID, recipients, err := consent.New(db).InitiateRound(ctx, groupID)
	if err != nil {
		switch err {
		case consent.ErrNoMembers:
			utils.WriteError(w, "group has no members", http.StatusNotFound)
		case consent.ErrRoundActive:
			utils.WriteError(w, "a confirmation round is already in progress", http.StatusConflict)
		default:
			utils.Logger.Errorf("failed to initiate round: %v", err)
			utils.WriteError(w, "failed to initiate confirmation round", http.StatusInternalServerError)
		}
		return
	}

	// Notify off the request path; a mail failure never fails the round.
	go notifyRecipients(groupID, recipients)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"round_id":  roundID,
			"requested": len(recipients),
		},
	})
}

func notifyRecipients(groupID int, recipients []consent.Recipient) {
	db := sqlconnect.DB
	if db == nil || len(recipients) == 0 {
		return
	}

	group, err := ledger.New(db).Group(context.Background(), groupID)
	if err != nil {
		utils.Logger.Errorf("failed to load group %d for notifications: %v", groupID, err)
		return
	}

	for _, rec := range recipients {
		if rec.Email == "" {
			continue
		}
		err := utils.SendConfirmShareEmail(rec.Email, rec.FirstName, group.Name, group.SubscriptionName, group.AmountEach.StringFixed(2))
		if err != nil {
			utils.Logger.Errorf("failed to send confirm share email to user %d: %v", rec.UserID, err)
		}
	}
}

func hasPendingRound(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, ok := groupIDFromPath(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	gate := consent.New(db)
	sent, err := gate.HasPendingRound(ctx, groupID)
	if err != nil {
		utils.Logger.Errorf("failed to check pending round: %v", err)
		utils.WriteError(w, "failed to check pending round", http.StatusInternalServerError)
		return
	}

	allApproved := false
	if sent {
		allApproved, err = gate.AllApproved(ctx, groupID)
		if err != nil {
			utils.Logger.Errorf("failed to check round completeness: %v", err)
			utils.WriteError(w, "failed to check round completeness", http.StatusInternalServerError)
			return
		}
	}

	utils.WriteJSON(w, map[string]interface{}{
		"sent":        sent,
		"allApproved": allApproved,
	})
}

func getStatus(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, ok := groupIDFromPath(w, r)
	if !ok {
		return
	}
	userID, err := strconv.Atoi(r.PathValue("userId"))
	if err != nil {
		utils.WriteError(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	requested, approved, err := consent.New(db).Status(ctx, groupID, userID)
	if err != nil {
		utils.Logger.Errorf("failed to read confirm share status: %v", err)
		utils.WriteError(w, "failed to read status", http.StatusInternalServerError)
		return
	}

	if !requested {
		utils.WriteJSON(w, map[string]interface{}{
			"requested": false,
			"message":   "share confirmation has not been requested yet",
		})
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"requested": true,
		"status":    approved,
	})
}

func approve(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, ok := groupIDFromPath(w, r)
	if !ok {
		return
	}
	userID, err := strconv.Atoi(r.PathValue("userId"))
	if err != nil {
		utils.WriteError(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := consent.New(db).Approve(ctx, groupID, userID); err != nil {
		if err == consent.ErrRequestNotFound {
			utils.WriteError(w, "no share confirmation request found", http.StatusNotFound)
			return
		}
		utils.Logger.Errorf("failed to approve share: %v", err)
		utils.WriteError(w, "failed to approve share", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"status":  "success",
		"message": "share approved",
	})
}
