// Package twilio is a minimal REST client for placing outbound calls on the
// telephony provider. Webhook traffic flows the other way and never uses it.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config carries the provider account credentials. AccountSID and AuthToken
// are required only when outbound calling is enabled.
type Config struct {
	AccountSID string        `envconfig:"ACCOUNT_SID" split_words:"true"`
	AuthToken  string        `envconfig:"AUTH_TOKEN" split_words:"true"`
	FromNumber string        `envconfig:"FROM_NUMBER" split_words:"true"`
	BaseURL    string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.twilio.com/2010-04-01"`
	Timeout    time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

// Configured reports whether the account credentials are present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.AccountSID) != "" && strings.TrimSpace(c.AuthToken) != ""
}

// Error is the provider's API error payload.
type Error struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("twilio: status=%d code=%d %s", e.Status, e.Code, e.Message)
}

// Call is the provider's call resource, trimmed to the fields we read.
type Call struct {
	SID    string `json:"sid"`
	To     string `json:"to"`
	From   string `json:"from"`
	Status string `json:"status"`
}

type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if !cfg.Configured() {
		return nil, errors.New("twilio account sid and auth token are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		accountSID: strings.TrimSpace(cfg.AccountSID),
		authToken:  strings.TrimSpace(cfg.AuthToken),
		fromNumber: strings.TrimSpace(cfg.FromNumber),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// FromNumber returns the configured caller id.
func (c *Client) FromNumber() string {
	return c.fromNumber
}

// MakeCallParams are the parameters for placing one outbound call.
type MakeCallParams struct {
	To   string
	From string
	// URL is the answer webhook the provider fetches for call instructions.
	URL string
}

// MakeCall places an outbound call and returns the created call resource.
func (c *Client) MakeCall(ctx context.Context, params MakeCallParams) (*Call, error) {
	if strings.TrimSpace(params.To) == "" {
		return nil, errors.New("destination number is required")
	}
	from := params.From
	if from == "" {
		from = c.fromNumber
	}
	if from == "" {
		return nil, errors.New("source number is required")
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)

	data := url.Values{}
	data.Set("To", params.To)
	data.Set("From", from)
	data.Set("Url", params.URL)
	data.Set("Method", http.MethodPost)

	var call Call
	if err := c.post(ctx, endpoint, data, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

func (c *Client) post(ctx context.Context, endpoint string, data url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr Error
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("twilio: status=%d body=%s", resp.StatusCode, string(body))
		}
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode
		}
		return &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parse twilio response: %w", err)
		}
	}
	return nil
}
