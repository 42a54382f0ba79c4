package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type StripeClient struct {
	SecretKey string
	BaseURL   string
	Client    *http.Client
}

func NewStripeClient() (*StripeClient, error) {
	secretKey := os.Getenv("STRIPE_SECRET_KEY")
	if secretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY environment variable is not set")
	}
	return &StripeClient{
		SecretKey: secretKey,
		BaseURL:   "https://api.stripe.com",
		Client:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type stripeObject struct {
	ID     string `json:"id"`
	Object string `json:"object"`
	Error  *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// doRequest sends a form-encoded request the way the Stripe API expects and
// decodes the object envelope.
func (s *StripeClient) doRequest(method, endpoint string, form url.Values) (*stripeObject, error) {
	endpointURL := fmt.Sprintf("%s%s", s.BaseURL, endpoint)

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequest(method, endpointURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Authorization", "Bearer "+s.SecretKey)
	if form != nil {
		req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var obj stripeObject
	if err := json.Unmarshal(respBody, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if obj.Error != nil {
		return nil, fmt.Errorf("API error: %s", obj.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(respBody))
	}
	return &obj, nil
}

// CreateCardholder registers an issuing cardholder for a user. The returned
// id is cached on the user row so repeat card requests reuse it.
func (s *StripeClient) CreateCardholder(name, email string) (string, error) {
	if name == "" || email == "" {
		return "", fmt.Errorf("cardholder name and email are required")
	}

	form := url.Values{}
	form.Set("type", "individual")
	form.Set("name", name)
	form.Set("email", email)
	form.Set("billing[address][line1]", os.Getenv("ISSUING_ADDRESS_LINE1"))
	form.Set("billing[address][city]", os.Getenv("ISSUING_ADDRESS_CITY"))
	form.Set("billing[address][state]", os.Getenv("ISSUING_ADDRESS_STATE"))
	form.Set("billing[address][postal_code]", os.Getenv("ISSUING_ADDRESS_POSTAL_CODE"))
	form.Set("billing[address][country]", os.Getenv("ISSUING_ADDRESS_COUNTRY"))

	obj, err := s.doRequest("POST", "/v1/issuing/cardholders", form)
	if err != nil {
		return "", err
	}
	return obj.ID, nil
}

// CreateVirtualCard issues a virtual card bound to the cardholder with a
// monthly spending limit equal to the group's subscription cost.
func (s *StripeClient) CreateVirtualCard(cardholderID string, monthlyLimitCents int64) (string, error) {
	if cardholderID == "" {
		return "", fmt.Errorf("cardholder id is required")
	}
	if monthlyLimitCents <= 0 {
		return "", fmt.Errorf("monthly limit must be greater than 0")
	}

	form := url.Values{}
	form.Set("cardholder", cardholderID)
	form.Set("currency", "usd")
	form.Set("type", "virtual")
	form.Set("status", "active")
	form.Set("spending_controls[spending_limits][0][amount]", strconv.FormatInt(monthlyLimitCents, 10))
	form.Set("spending_controls[spending_limits][0][interval]", "monthly")

	obj, err := s.doRequest("POST", "/v1/issuing/cards", form)
	if err != nil {
		return "", err
	}
	return obj.ID, nil
}
