// Payment HTTP handler.
//
// POST /payments/check starts a bounded poll against the caller's pending
// payment. The poll context (provider, transaction reference, provider
// credential) is normally resolved from the upstream backend using the
// caller's bearer token; explicit fields in the request body override the
// lookup, which keeps the endpoint usable without the upstream.
//
// The endpoint returns 202 immediately. The outcome reaches the user over
// their websocket connections when the poll resolves.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/damam/go-relay-backend/internal/payment"
)

// CheckPaymentRequest optionally pins the poll target. Empty fields are
// filled from the upstream user record.
type CheckPaymentRequest struct {
	Provider       string `json:"provider" example:"MOMO"`
	TransactionRef string `json:"transaction_ref" example:"f7f4b9a2-..."`
	AccessToken    string `json:"access_token"`
}

// CheckPaymentResponse acknowledges the started poll.
type CheckPaymentResponse struct {
	UserID         string `json:"user_id"`
	Provider       string `json:"provider"`
	TransactionRef string `json:"transaction_ref"`
	State          string `json:"state"`
}

// CheckPayment starts a poll job for the caller's pending payment.
//
// Responses:
//   - 202 when the poll started
//   - 400 for an unsupported provider or missing transaction
//   - 409 when a poll for the same transaction is already running
//   - 502 when the upstream payment context lookup fails
func (h *Handlers) CheckPayment(c *gin.Context) {
	ctx := c.Request.Context()

	user := userID(c)
	if user == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "caller identity required")
		return
	}
	if h.polls == nil {
		fail(c, http.StatusInternalServerError, ErrCodePollFailed, "payment polling unavailable")
		return
	}

	var body CheckPaymentRequest
	// The body is optional; ignore bind errors for an empty payload.
	_ = c.ShouldBindJSON(&body)

	req := payment.PollRequest{
		UserID:         user,
		Provider:       payment.Provider(strings.ToUpper(strings.TrimSpace(body.Provider))),
		AccessToken:    body.AccessToken,
		TransactionRef: strings.TrimSpace(body.TransactionRef),
	}

	if req.TransactionRef == "" || req.Provider == "" {
		if h.directory == nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "provider and transaction_ref required")
			return
		}
		resolved, err := h.directory.PaymentContext(ctx, bearerToken(c))
		if err != nil {
			fail(c, http.StatusBadGateway, ErrCodePollFailed, err.Error())
			return
		}
		if req.Provider == "" {
			req.Provider = resolved.Provider
		}
		if req.TransactionRef == "" {
			req.TransactionRef = resolved.TransactionRef
		}
		if req.AccessToken == "" {
			req.AccessToken = resolved.AccessToken
		}
	}

	job, err := h.polls.Start(req)
	switch {
	case errors.Is(err, payment.ErrUnsupportedProvider):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case errors.Is(err, payment.ErrJobActive):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodePollFailed, err.Error())
		return
	}

	accepted(c, CheckPaymentResponse{
		UserID:         job.UserID,
		Provider:       string(job.Provider),
		TransactionRef: job.TransactionRef,
		State:          string(job.State()),
	})
}
