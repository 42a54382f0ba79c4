package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Khoadoanduy/fair-share-sub001/internal/decider"
	"github.com/Khoadoanduy/fair-share-sub001/internal/ledger"
	"github.com/Khoadoanduy/fair-share-sub001/internal/models"
	"github.com/Khoadoanduy/fair-share-sub001/internal/repositories/sqlconnect"
	"github.com/Khoadoanduy/fair-share-sub001/internal/verifier"
	"github.com/Khoadoanduy/fair-share-sub001/pkg/utils"
)

// stripeVersion is pinned to the API version the card network expects on
// authorization responses.
const stripeVersion = "2025-03-31.basil"

// StripeWebhook handles card-network event notifications. Authorization
// requests get a synchronous approve/decline; a missing or late response is
// treated by the network as a decline, so every path through this handler
// answers before returning.
func StripeWebhook(w http.ResponseWriter, r *http.Request) {
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

	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.WriteError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	sig := r.Header.Get("Stripe-Signature")
	if !utils.VerifyStripeSignature(sig, body) {
		utils.Logger.Warn("Invalid Stripe signature")
		utils.WriteError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		utils.WriteError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "issuing_authorization.request":
		handleAuthorizationRequest(w, r, event.Data.Object)
	case "payment_intent.succeeded":
		utils.Logger.Info("Payment intent succeeded event received")
		acknowledge(w)
	default:
		utils.Logger.Infof("Unhandled webhook event type: %s", event.Type)
		acknowledge(w)
	}
}

func handleAuthorizationRequest(w http.ResponseWriter, r *http.Request, object json.RawMessage) {
	var auth struct {
		ID   string `json:"id"`
		Card struct {
			ID string `json:"id"`
		} `json:"card"`
		MerchantData models.MerchantData `json:"merchant_data"`
	}
	if err := json.Unmarshal(object, &auth); err != nil {
		utils.WriteError(w, "invalid authorization object", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	approved := false
	client, err := verifier.NewClient()
	if err != nil {
		// No verifier available: still answer, fail closed.
		utils.Logger.Errorf("merchant verifier unavailable: %v", err)
	} else {
		d := decider.New(ledger.New(sqlconnect.DB), client)
		decision := d.Decide(ctx, auth.Card.ID, auth.MerchantData)
		approved = decision.Approved
	}

	utils.Logger.Infof("authorization %s on card %s: approved=%v (merchant %q)",
		auth.ID, auth.Card.ID, approved, auth.MerchantData.Name)

	w.Header().Set("Stripe-Version", stripeVersion)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"approved": approved})
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
