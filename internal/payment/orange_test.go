package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOrangeFetchStatusSendsCredentials(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_, _ = w.Write([]byte(`{"data":{"status":"SUCCESSFULL"}}`))
	}))
	defer srv.Close()

	c := &OrangeClient{
		BaseURL:    srv.URL,
		AuthToken:  "static-auth",
		HTTPClient: &http.Client{Timeout: time.Second},
	}
	req := PollRequest{UserID: "u", Provider: ProviderOrange, AccessToken: "tok", TransactionRef: "pay-9"}

	status, err := c.FetchStatus(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if status != "SUCCESSFULL" {
		t.Errorf("status = %q, want SUCCESSFULL", status)
	}
	if got.URL.Path != "/omcoreapis/1.0.2/mp/paymentstatus/pay-9" {
		t.Errorf("path = %q", got.URL.Path)
	}
	if h := got.Header.Get("Authorization"); h != "Bearer tok" {
		t.Errorf("Authorization = %q", h)
	}
	if h := got.Header.Get("X-AUTH-TOKEN"); h != "static-auth" {
		t.Errorf("X-AUTH-TOKEN = %q", h)
	}
}

func TestOrangeFetchStatusEnvelope(t *testing.T) {
	cases := map[string]struct {
		body      string
		wantErr   bool
		transient bool
		want      string
	}{
		"nested status":       {body: `{"data":{"status":"PENDING"}}`, want: StatusPending},
		"empty body":          {body: "", wantErr: true, transient: true},
		"flat status ignored": {body: `{"status":"SUCCESSFULL"}`, wantErr: true, transient: true},
		"empty envelope":      {body: `{"data":{}}`, wantErr: true, transient: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := &OrangeClient{BaseURL: srv.URL, HTTPClient: &http.Client{Timeout: time.Second}}
			status, err := c.FetchStatus(context.Background(), PollRequest{TransactionRef: "r"})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got status %q", status)
				}
				if IsTransient(err) != tc.transient {
					t.Errorf("IsTransient(%v) = %v, want %v", err, !tc.transient, tc.transient)
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchStatus: %v", err)
			}
			if status != tc.want {
				t.Errorf("status = %q, want %q", status, tc.want)
			}
		})
	}
}
