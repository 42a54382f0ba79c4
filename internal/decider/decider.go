// Package decider answers a card network's real-time "should this charge be
// allowed?" query. It always produces an answer: any lookup or verification
// failure degrades to a decline, never to a missing response.
package decider

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/Khoadoanduy/fair-share-sub001/internal/ledger"
	"github.com/Khoadoanduy/fair-share-sub001/internal/models"
	"github.com/Khoadoanduy/fair-share-sub001/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultThreshold = 70
	defaultTimeout   = 2 * time.Second
)

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fairshare_authorization_decisions_total",
	Help: "Card authorization decisions by outcome.",
}, []string{"outcome"})

// GroupLookup resolves the group that owns a virtual card.
type GroupLookup interface {
	GroupByCard(ctx context.Context, cardID string) (*models.Group, error)
}

// MerchantVerifier scores a merchant against an expected subscription.
type MerchantVerifier interface {
	Verify(ctx context.Context, merchant models.MerchantData, expected string) (*models.VerificationResult, error)
}

type Decision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

type Decider struct {
	groups    GroupLookup
	verifier  MerchantVerifier
	threshold int
	timeout   time.Duration
}

// New builds a decider with the approval threshold and verification timeout
// taken from the environment. The threshold defaults to 70; deployments may
// override it but the default is load-bearing for the decision policy.
func New(groups GroupLookup, verifier MerchantVerifier) *Decider {
	threshold := defaultThreshold
	if v := os.Getenv("APPROVAL_CONFIDENCE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 100 {
			threshold = n
		} else {
			utils.Logger.Warnf("ignoring invalid APPROVAL_CONFIDENCE_THRESHOLD %q", v)
		}
	}

	timeout := defaultTimeout
	if v := os.Getenv("VERIFY_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		} else {
			utils.Logger.Warnf("ignoring invalid VERIFY_TIMEOUT_MS %q", v)
		}
	}

	return &Decider{groups: groups, verifier: verifier, threshold: threshold, timeout: timeout}
}

// Decide resolves one authorization event. The verification call runs under
// its own deadline so a slow upstream can never hold the card network's
// response window open.
func (d *Decider) Decide(ctx context.Context, cardID string, merchant models.MerchantData) Decision {
	group, err := d.groups.GroupByCard(ctx, cardID)
	if err != nil {
		if errors.Is(err, ledger.ErrGroupNotFound) {
			utils.Logger.Warnf("authorization for unknown card %s declined", cardID)
			return d.declined("no group owns this card")
		}
		utils.Logger.Errorf("group lookup failed for card %s: %v", cardID, err)
		return d.declined("group lookup failed")
	}

	vctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.verifier.Verify(vctx, merchant, group.SubscriptionName)
	if err != nil {
		utils.Logger.Errorf("merchant verification failed for group %d: %v", group.ID, err)
		return d.declined("merchant verification unavailable")
	}

	if result.Status == models.VerificationMatch && result.Confidence >= d.threshold {
		utils.Logger.Infof("authorization approved for group %d (merchant %q, confidence %d)",
			group.ID, merchant.Name, result.Confidence)
		decisionsTotal.WithLabelValues("approved").Inc()
		return Decision{Approved: true, Reason: result.Explanation}
	}

	utils.Logger.Infof("authorization declined for group %d (merchant %q, status %s, confidence %d)",
		group.ID, merchant.Name, result.Status, result.Confidence)
	return d.declined(result.Explanation)
}

func (d *Decider) declined(reason string) Decision {
	decisionsTotal.WithLabelValues("declined").Inc()
	return Decision{Approved: false, Reason: reason}
}
