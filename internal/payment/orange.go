// Package payment implements the bounded payment status polling loop.
// This file provides the Orange Money status client. The core API reports a
// payment's state under /omcoreapis/1.0.2/mp/paymentstatus/{payToken}, with
// the status nested inside a data envelope.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OrangeClient queries the Orange Money core API for payment status.
type OrangeClient struct {
	// BaseURL is the API root, e.g. "https://api-s1.orange.cm".
	BaseURL string
	// AuthToken is the static X-AUTH-TOKEN credential.
	AuthToken string
	// HTTPClient must have a sensible timeout set by the caller.
	HTTPClient *http.Client
}

// orangeStatusResponse mirrors the data envelope around the status field.
type orangeStatusResponse struct {
	Data struct {
		Status string `json:"status"`
	} `json:"data"`
}

// FetchStatus performs one status query. Empty bodies, unparseable payloads,
// and a missing nested status are transient; transport failures and non-2xx
// responses are fatal.
func (c *OrangeClient) FetchStatus(ctx context.Context, req PollRequest) (string, error) {
	url := fmt.Sprintf("%s/omcoreapis/1.0.2/mp/paymentstatus/%s", c.BaseURL, req.TransactionRef)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("X-AUTH-TOKEN", c.AuthToken)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("orange status query returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", ErrEmptyResponse
	}

	var out orangeStatusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Data.Status == "" {
		return "", fmt.Errorf("%w: missing data.status field", ErrMalformedResponse)
	}
	return out.Data.Status, nil
}
