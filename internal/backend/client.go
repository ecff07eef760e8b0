// Package backend provides the HTTP client for the upstream application
// backend that owns user accounts, durable message storage, and payment
// bookkeeping. The relay forwards data to it but never blocks delivery on
// it: callers treat every method here as best effort.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/damam/go-relay-backend/internal/config"
	"github.com/damam/go-relay-backend/internal/domain"
	"github.com/damam/go-relay-backend/internal/payment"
)

// Client talks to the upstream backend API. The zero value is not usable;
// construct via NewClient.
type Client struct {
	// BaseURL is the API root without a trailing slash.
	BaseURL string
	// APIToken, when set, authenticates server-to-server calls that are not
	// made on behalf of a specific user (status persistence).
	APIToken string
	// HTTPClient carries the configured request timeout.
	HTTPClient *http.Client
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.BackendConfig) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		APIToken:   cfg.APIToken,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// SaveMessage forwards a routed message for durable storage upstream. The
// token is the sending user's bearer credential.
func (c *Client) SaveMessage(ctx context.Context, token string, msg *domain.Message) error {
	fields := map[string]string{
		"sender_id":   msg.SenderID,
		"receiver_id": msg.ReceiverID,
		"message":     msg.Body,
	}
	if msg.Attachment != "" {
		fields["attachment"] = msg.Attachment
	}
	return c.postForm(ctx, "/save_message", token, fields)
}

// adminRecord is the subset of the admin listing we read. IDs arrive as
// numbers from the upstream database, so decode through json.Number.
type adminRecord struct {
	ID json.Number `json:"id"`
}

// AdminIDs returns the user IDs of all administrators, used as the receiver
// set for admin broadcasts.
func (c *Client) AdminIDs(ctx context.Context, token string) ([]string, error) {
	body, err := c.get(ctx, "/getAdmin", token)
	if err != nil {
		return nil, err
	}

	var admins []adminRecord
	if err := json.Unmarshal(body, &admins); err != nil {
		return nil, fmt.Errorf("parse admin listing: %w", err)
	}
	ids := make([]string, 0, len(admins))
	for _, a := range admins {
		if a.ID.String() != "" {
			ids = append(ids, a.ID.String())
		}
	}
	return ids, nil
}

// paymentUser is the slice of the upstream user record that describes the
// pending payment to watch.
type paymentUser struct {
	ID            json.Number `json:"id"`
	PaymentMethod string      `json:"payment_method"`
	TransactionID string      `json:"transaction_id"`
	PaymentToken  string      `json:"payment_token"`
}

// PaymentContext resolves the authenticated user's pending payment into a
// poll request: who they are, which provider to query, and with what
// credentials.
func (c *Client) PaymentContext(ctx context.Context, token string) (payment.PollRequest, error) {
	body, err := c.get(ctx, "/get_user", token)
	if err != nil {
		return payment.PollRequest{}, err
	}

	var u paymentUser
	if err := json.Unmarshal(body, &u); err != nil {
		return payment.PollRequest{}, fmt.Errorf("parse user record: %w", err)
	}
	if u.TransactionID == "" {
		return payment.PollRequest{}, fmt.Errorf("user %s has no pending transaction", u.ID.String())
	}
	return payment.PollRequest{
		UserID:         u.ID.String(),
		Provider:       payment.Provider(strings.ToUpper(u.PaymentMethod)),
		AccessToken:    u.PaymentToken,
		TransactionRef: u.TransactionID,
	}, nil
}

// SaveStatus persists a terminal payment status upstream. It satisfies the
// payment supervisor's persistence contract.
func (c *Client) SaveStatus(ctx context.Context, userID, status string) error {
	return c.postForm(ctx, "/save_new_status", c.APIToken, map[string]string{
		"user_id": userID,
		"status":  status,
	})
}

// postForm sends a multipart form, matching what the upstream endpoints
// accept.
func (c *Client) postForm(ctx context.Context, path, token string, fields map[string]string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend %s returned %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("backend %s returned %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
