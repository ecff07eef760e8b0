// Package payment implements the bounded payment status polling loop.
// This file provides the MTN Mobile Money status client. The collections
// API reports the state of a request-to-pay under
// /collection/v1_0/requesttopay/{referenceId}.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MoMoClient queries the MTN MoMo collections API for request-to-pay status.
type MoMoClient struct {
	// BaseURL is the API root, e.g. "https://proxy.momoapi.mtn.com".
	BaseURL string
	// SubscriptionKey is sent as Ocp-Apim-Subscription-Key.
	SubscriptionKey string
	// TargetEnvironment is sent as X-Target-Environment (e.g. "mtncameroon").
	TargetEnvironment string
	// HTTPClient must have a sensible timeout set by the caller.
	HTTPClient *http.Client
}

// momoStatusResponse is the subset of the request-to-pay body we read.
type momoStatusResponse struct {
	Status string `json:"status"`
}

// FetchStatus performs one status query. Empty bodies and unparseable
// payloads are reported as transient errors; transport failures and
// non-2xx responses are fatal.
func (c *MoMoClient) FetchStatus(ctx context.Context, req PollRequest) (string, error) {
	url := fmt.Sprintf("%s/collection/v1_0/requesttopay/%s", c.BaseURL, req.TransactionRef)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.SubscriptionKey)
	httpReq.Header.Set("X-Target-Environment", c.TargetEnvironment)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("momo status query returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", ErrEmptyResponse
	}

	var out momoStatusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Status == "" {
		return "", fmt.Errorf("%w: missing status field", ErrMalformedResponse)
	}
	return out.Status, nil
}
