package models

// MerchantData carries the merchant fields from an issuing authorization
// event. Transient, never persisted.
type MerchantData struct {
	Category     string `json:"category,omitempty"`
	CategoryCode string `json:"category_code,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`
	Name         string `json:"name,omitempty"`
	NetworkID    string `json:"network_id,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	State        string `json:"state,omitempty"`
}

const (
	VerificationMatch   = "MATCH"
	VerificationNoMatch = "NO_MATCH"
)

// VerificationResult is the parsed answer from the merchant verification
// service for a single authorization event.
type VerificationResult struct {
	Status      string `json:"status"`
	Confidence  int    `json:"confidence"`
	Explanation string `json:"explanation"`
}
