// Package verifier scores whether a card-network merchant matches the
// subscription a group expects to be billed for. It is a single
// call-and-parse boundary to an external reasoning service; nothing here is
// persisted.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Khoadoanduy/fair-share-sub001/internal/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o-mini"

	systemPrompt = `You are a payment verification assistant. You are given the merchant details of a card transaction and the name of the subscription the cardholder expects to be billed for. Decide whether the transaction was made by that subscription service.

Weigh the merchant name, merchant category, and geography. Account for payment aggregators and billing platforms (for example PayPal, Apple, Google, Stripe, Adyen) that charge on behalf of other merchants: an aggregator charge can still be a MATCH when the descriptor or category is consistent with the expected service.

Respond with ONLY a JSON object, no other text:
{"status": "MATCH" or "NO_MATCH", "confidence": <integer 0-100>, "explanation": "<one sentence>"}`
)

// ErrVerificationFailed covers every way the verification call can go wrong:
// transport errors, non-2xx responses, and output that cannot be parsed. The
// caller applies its own fallback policy instead of trusting a default
// result.
var ErrVerificationFailed = errors.New("merchant verification failed")

// Client calls an OpenAI-compatible chat completions API.
type Client struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewClient() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}

	return &Client{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Verify asks the reasoning service whether the merchant matches the
// expected subscription. The context bounds the call; the authorization
// path passes a deadline well inside the card network's response window.
func (c *Client) Verify(ctx context.Context, merchant models.MerchantData, expected string) (*models.VerificationResult, error) {
	req := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(merchant, expected)},
		},
		Temperature: 0,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrVerificationFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrVerificationFailed, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrVerificationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d: %s", ErrVerificationFailed, resp.StatusCode, string(respBody))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrVerificationFailed, err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response content", ErrVerificationFailed)
	}

	return parseResult(apiResp.Choices[0].Message.Content)
}

func buildUserPrompt(m models.MerchantData, expected string) string {
	return fmt.Sprintf(`Expected subscription: %q

Merchant details:
- name: %q
- category: %q
- category code: %q
- city: %q
- state: %q
- postal code: %q
- country: %q
- network id: %q`,
		expected, m.Name, m.Category, m.CategoryCode, m.City, m.State, m.PostalCode, m.Country, m.NetworkID)
}

// parseResult extracts the JSON verdict, tolerating markdown code fences
// around it.
func parseResult(text string) (*models.VerificationResult, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var result models.VerificationResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("%w: parse verdict: %v (raw: %s)", ErrVerificationFailed, err, text)
	}

	if result.Status != models.VerificationMatch && result.Status != models.VerificationNoMatch {
		return nil, fmt.Errorf("%w: unexpected status %q", ErrVerificationFailed, result.Status)
	}
	if result.Confidence < 0 || result.Confidence > 100 {
		return nil, fmt.Errorf("%w: confidence %d out of range", ErrVerificationFailed, result.Confidence)
	}
	return &result, nil
}
