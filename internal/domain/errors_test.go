package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFromStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindPermanent},
		{http.StatusForbidden, KindPermanent},
		{http.StatusNotFound, KindNotFound},
		{http.StatusBadRequest, KindPermanent},
		{http.StatusBadGateway, KindTransient},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ErrorFromStatus(ProviderYahoo, "AAPL", tt.status, "")
			assert.Equal(t, tt.kind, err.Kind)
			assert.Contains(t, err.Error(), "yahoo")
		})
	}
}

func TestErrorHelpers_SeeThroughWrapping(t *testing.T) {
	rl := fmt.Errorf("attempt 1: %w", NewProviderError(ProviderFinnhub, "MSFT", KindRateLimited, nil))
	assert.True(t, IsRateLimited(rl))
	assert.False(t, IsPermanent(rl))

	nf := fmt.Errorf("wrapped: %w", NewProviderError(ProviderFinnhub, "ZZZZ", KindNotFound, nil))
	assert.True(t, IsPermanent(nf))
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsRateLimited(nf))

	assert.False(t, IsRateLimited(errors.New("plain")))
	assert.True(t, IsTimeout(fmt.Errorf("call: %w", context.DeadlineExceeded)))
}

func TestIsSymbolScoped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", NewProviderError(ProviderYahoo, "ZZZZ", KindNotFound, nil), true},
		{"bad symbol", ErrorFromStatus(ProviderFinnhub, "BAD1", http.StatusBadRequest, ""), true},
		{"unprocessable", ErrorFromStatus(ProviderFinnhub, "BAD1", http.StatusUnprocessableEntity, ""), true},
		{"plan restricted symbol", ErrorFromStatus(ProviderPolygon, "X:BTCUSD", http.StatusForbidden, ""), true},
		{"bad credentials", ErrorFromStatus(ProviderFinnhub, "AAPL", http.StatusUnauthorized, ""), false},
		{"forbidden without symbol", ErrorFromStatus(ProviderYahoo, "", http.StatusForbidden, ""), false},
		{"missing api key", NewProviderError(ProviderFinnhub, "AAPL", KindPermanent, errors.New("missing API key")), false},
		{"server error", ErrorFromStatus(ProviderYahoo, "AAPL", http.StatusBadGateway, ""), false},
		{"rate limited", ErrorFromStatus(ProviderYahoo, "AAPL", http.StatusTooManyRequests, ""), false},
		{"timeout", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSymbolScoped(tt.err))
		})
	}
}
