package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Sender sends a text message to one phone number
type Sender interface {
	Send(ctx context.Context, phone, message string) (int64, error)
	Name() string
}

// ErrInvalidRecipient is returned for numbers the gateway cannot address
var ErrInvalidRecipient = errors.New("invalid sms recipient")

// Gateway implements Sender against a token-authenticated eSMS HTTP API
type Gateway struct {
	apiURL   string
	username string
	password string
	mask     string
	client   *http.Client

	// Token management
	token       string
	tokenMutex  sync.RWMutex
	tokenExpiry time.Time
}

// Config holds configuration for the SMS gateway
type Config struct {
	APIURL   string
	Username string
	Password string
	Mask     string
	Timeout  time.Duration
}

// NewGateway creates a new SMS gateway client
func NewGateway(config Config) *Gateway {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		apiURL:   strings.TrimRight(config.APIURL, "/"),
		username: config.Username,
		password: config.Password,
		mask:     config.Mask,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// LoginRequest represents the login request structure
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the login response structure
type LoginResponse struct {
	Status     string `json:"status"`
	Comment    string `json:"comment"`
	Token      string `json:"token"`
	Expiration int    `json:"expiration"` // seconds
	ErrCode    string `json:"errCode"`
}

// Recipient is a single SMS recipient
type Recipient struct {
	Mobile string `json:"mobile"`
}

// SendRequest represents the SMS sending request structure
type SendRequest struct {
	MSISDN        []Recipient `json:"msisdn"`
	Message       string      `json:"message"`
	SourceAddress string      `json:"sourceAddress,omitempty"`
	TransactionID int64       `json:"transaction_id"`
}

// SendResponse represents the SMS sending response structure
type SendResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	Data    struct {
		CampaignID     int `json:"campaignId"`
		InvalidNumbers int `json:"invalidNumbers"`
	} `json:"data"`
	ErrCode string `json:"errCode"`
}

// login retrieves and caches an access token
func (g *Gateway) login(ctx context.Context) error {
	var loginResp LoginResponse
	if err := g.post(ctx, "/login", "", LoginRequest{Username: g.username, Password: g.password}, &loginResp); err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}

	if loginResp.Status != "success" || loginResp.Token == "" {
		return fmt.Errorf("login failed: %s (error code: %s)", loginResp.Comment, loginResp.ErrCode)
	}

	g.tokenMutex.Lock()
	g.token = loginResp.Token
	g.tokenExpiry = time.Now().Add(time.Duration(loginResp.Expiration) * time.Second)
	g.tokenMutex.Unlock()

	return nil
}

// currentToken returns a cached token that is valid for at least five more minutes
func (g *Gateway) currentToken() string {
	g.tokenMutex.RLock()
	defer g.tokenMutex.RUnlock()

	if g.token == "" || !time.Now().Before(g.tokenExpiry.Add(-5*time.Minute)) {
		return ""
	}
	return g.token
}

func (g *Gateway) ensureToken(ctx context.Context) (string, error) {
	if token := g.currentToken(); token != "" {
		return token, nil
	}
	if err := g.login(ctx); err != nil {
		return "", err
	}
	return g.currentToken(), nil
}

// FormatMSISDN converts an E.164 number into the digits-only form the API expects
func FormatMSISDN(phone string) (string, error) {
	if !strings.HasPrefix(phone, "+") {
		return "", fmt.Errorf("%w: %q is not in E.164 form", ErrInvalidRecipient, phone)
	}
	digits := phone[1:]
	if len(digits) < 8 || len(digits) > 15 {
		return "", fmt.Errorf("%w: %q has %d digits", ErrInvalidRecipient, phone, len(digits))
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q contains non-digits", ErrInvalidRecipient, phone)
		}
	}
	return digits, nil
}

// Send sends message to phone and returns the gateway transaction id
func (g *Gateway) Send(ctx context.Context, phone, message string) (int64, error) {
	msisdn, err := FormatMSISDN(phone)
	if err != nil {
		return 0, err
	}

	token, err := g.ensureToken(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get access token: %w", err)
	}

	transactionID := time.Now().UnixMicro()
	smsReq := SendRequest{
		MSISDN:        []Recipient{{Mobile: msisdn}},
		Message:       message,
		SourceAddress: g.mask,
		TransactionID: transactionID,
	}

	var smsResp SendResponse
	if err := g.post(ctx, "/sms", token, smsReq, &smsResp); err != nil {
		return 0, fmt.Errorf("sms request failed: %w", err)
	}

	if smsResp.Status != "success" {
		return 0, fmt.Errorf("SMS sending failed: %s (error code: %s)", smsResp.Comment, smsResp.ErrCode)
	}
	if smsResp.Data.InvalidNumbers > 0 {
		return 0, fmt.Errorf("%w: gateway rejected %s", ErrInvalidRecipient, phone)
	}

	return transactionID, nil
}

// post sends a JSON request and decodes the JSON response
func (g *Gateway) post(ctx context.Context, path, token string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

// Name returns the name of this SMS gateway
func (g *Gateway) Name() string {
	return "eSMS API v2 Gateway"
}
