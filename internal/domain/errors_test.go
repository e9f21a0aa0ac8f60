package domain

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "network", err: &APIError{Kind: ErrNetwork, HTTPStatus: 502}, want: true},
		{name: "rate limit", err: errors.Wrap(&APIError{Kind: ErrRateLimit, HTTPStatus: 429}, "get balances"), want: true},
		{name: "auth", err: &APIError{Kind: ErrAuthentication, HTTPStatus: 401, Code: "50113"}, want: false},
		{name: "rejected", err: &APIError{Kind: ErrOrderRejected, Code: "51008"}, want: false},
		{name: "canceled", err: &APIError{Kind: ErrNetwork, Err: context.Canceled}, want: false},
		{name: "plain", err: fmt.Errorf("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, ReasonNetworkExhausted, FailureReason(&APIError{Kind: ErrNetwork}))
	assert.Equal(t, ReasonRateLimited, FailureReason(&APIError{Kind: ErrRateLimit}))
	assert.Equal(t, ReasonAuth, FailureReason(&APIError{Kind: ErrAuthentication}))
	assert.Equal(t, ReasonOrderRejected, FailureReason(&APIError{Kind: ErrOrderRejected}))
	assert.Equal(t, ReasonShutdown, FailureReason(errors.Wrap(context.Canceled, "sleep")))
	assert.Equal(t, ReasonRequestRejected, FailureReason(&APIError{HTTPStatus: 400, Code: "51000"}))
}

func TestFailureReason_Timeouts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 20 * time.Millisecond}
	_, httpErr := client.Get(srv.URL)
	require.Error(t, httpErr)

	agentCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-agentCtx.Done()

	tests := []struct {
		name string
		err  error
	}{
		{name: "http client timeout", err: &APIError{Kind: ErrNetwork, Err: httpErr}},
		{name: "agent timeout", err: &APIError{Kind: ErrNetwork, Message: "agent timed out", Err: agentCtx.Err()}},
		{name: "wrapped deadline", err: errors.Wrap(context.DeadlineExceeded, "get balances")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsTransient(tt.err))
			assert.Equal(t, ReasonNetworkExhausted, FailureReason(tt.err))
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Kind: ErrAuthentication, HTTPStatus: 401, Code: "50113", Message: "Invalid Sign"}
	assert.Equal(t, "authentication error (http 401, code 50113): Invalid Sign", err.Error())
}

func TestCredential(t *testing.T) {
	full := Credential{APIKey: "key-1", APISecret: "topsecret", Passphrase: "phrase-1"}
	assert.True(t, full.Complete())
	assert.NoError(t, full.Validate())
	printed := fmt.Sprintf("%v %+v %#v", full, full, full)
	assert.NotContains(t, printed, "topsecret")
	assert.NotContains(t, printed, "phrase-1")

	partial := Credential{APIKey: "k"}
	assert.False(t, partial.Complete())
	assert.False(t, partial.Empty())
	err := partial.Validate()
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "api secret, passphrase")

	assert.True(t, Credential{}.Empty())
}
