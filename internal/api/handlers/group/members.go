package group

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Khoadoanduy/fair-share-sub001/internal/ledger"
	"github.com/Khoadoanduy/fair-share-sub001/internal/repositories/sqlconnect"
	"github.com/Khoadoanduy/fair-share-sub001/pkg/utils"
)

// MemberHandler serves /group/{groupId}/{userId}: POST adds a member,
// DELETE removes one, GET reports membership and leadership.
func MemberHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		addMember(w, r)
	case http.MethodDelete:
		removeMember(w, r)
	case http.MethodGet:
		getRole(w, r)
	default:
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func pathIDs(w http.ResponseWriter, r *http.Request) (groupID, userID int, ok bool) {
	groupID, err := strconv.Atoi(r.PathValue("groupId"))
	if err != nil {
		utils.WriteError(w, "invalid group ID", http.StatusBadRequest)
		return 0, 0, false
	}
	userID, err = strconv.Atoi(r.PathValue("userId"))
	if err != nil {
		utils.WriteError(w, "invalid user ID", http.StatusBadRequest)
		return 0, 0, false
	}
	return groupID, userID, true
}

func addMember(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, userID, ok := pathIDs(w, r)
	if !ok {
		return
	}

	type request struct {
		UserRole string `json:"userRole"`
	}
	var req request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.UserRole != ledger.RoleLeader && req.UserRole != ledger.RoleMember {
		utils.WriteError(w, "userRole must be 'leader' or 'member'", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	member, group, err := ledger.New(db).AddMember(ctx, groupID, userID, req.UserRole)
	if err != nil {
		switch err {
		case ledger.ErrGroupNotFound:
			utils.WriteError(w, "group not found", http.StatusNotFound)
		case ledger.ErrAlreadyMember:
			utils.WriteError(w, "user is already a member of this group", http.StatusConflict)
		default:
			utils.Logger.Errorf("failed to add member: %v", err)
			utils.WriteError(w, "failed to add member", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"member": member,
			"group":  group,
		},
	})
}

func removeMember(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, userID, ok := pathIDs(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	member, group, err := ledger.New(db).RemoveMember(ctx, groupID, userID)
	if err != nil {
		switch err {
		case ledger.ErrGroupNotFound:
			utils.WriteError(w, "group not found", http.StatusNotFound)
		case ledger.ErrNotAMember:
			utils.WriteError(w, "user is not a member of this group", http.StatusNotFound)
		case ledger.ErrLastMember:
			utils.WriteError(w, "cannot remove the last member; delete the group instead", http.StatusConflict)
		default:
			utils.Logger.Errorf("failed to remove member: %v", err)
			utils.WriteError(w, "failed to remove member", http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"member": member,
			"group":  group,
		},
	})
}

func getRole(w http.ResponseWriter, r *http.Request) {
	db := sqlconnect.DB
	if db == nil {
		utils.Logger.Error("DB is not initialized")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	groupID, userID, ok := pathIDs(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	isMember, isLeader, err := ledger.New(db).Role(ctx, groupID, userID)
	if err != nil {
		utils.Logger.Errorf("failed to look up role: %v", err)
		utils.WriteError(w, "failed to look up role", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"isMember": isMember,
		"isLeader": isLeader,
	})
}

// MembersHandler serves GET /group/{groupId}: the full roster with embedded
// user profiles.
func MembersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
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

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	l := ledger.New(db)
	group, err := l.Group(ctx, groupID)
	if err != nil {
		if err == ledger.ErrGroupNotFound {
			utils.WriteError(w, "group not found", http.StatusNotFound)
			return
		}
		utils.Logger.Errorf("failed to retrieve group: %v", err)
		utils.WriteError(w, "failed to retrieve group", http.StatusInternalServerError)
		return
	}

	members, err := l.Members(ctx, groupID)
	if err != nil {
		utils.Logger.Errorf("failed to fetch members: %v", err)
		utils.WriteError(w, "failed to fetch members", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"group":   group,
			"members": members,
		},
	})
}
