package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoTickers aborts a session run: there is nothing to track
var ErrNoTickers = errors.New("no tickers found")

// ErrorKind classifies provider failures for retry and fallback decisions
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindRateLimited
	KindPermanent
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindPermanent:
		return "permanent"
	case KindNotFound:
		return "not_found"
	}
	return "transient"
}

// ProviderError is a classified failure from a price provider
type ProviderError struct {
	Err        error
	Provider   ProviderID
	Symbol     string
	StatusCode int
	Kind       ErrorKind
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Symbol != "" {
		msg += " for " + e.Symbol
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a classified error
func NewProviderError(provider ProviderID, symbol string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Symbol: symbol, Kind: kind, Err: err}
}

// ErrorFromStatus classifies a non-2xx HTTP response
func ErrorFromStatus(provider ProviderID, symbol string, status int, body string) *ProviderError {
	kind := KindTransient
	switch {
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindPermanent
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status >= 400 && status < 500:
		kind = KindPermanent
	}
	var err error
	if body != "" {
		err = errors.New(body)
	}
	return &ProviderError{Provider: provider, Symbol: symbol, StatusCode: status, Kind: kind, Err: err}
}

func kindOf(err error) (ErrorKind, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return KindTransient, false
}

// IsRateLimited reports whether backoff could help
func IsRateLimited(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindRateLimited
}

// IsPermanent reports auth and bad-symbol failures, including NotFound
func IsPermanent(err error) bool {
	k, ok := kindOf(err)
	return ok && (k == KindPermanent || k == KindNotFound)
}

// IsNotFound reports a provider that answered but has no price for the symbol
func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

// IsSymbolScoped reports a failure that says something about one symbol rather
// than the provider's health: not found, bad or unsupported symbol, or a
// per-symbol plan restriction. Auth failures (401) and errors without a
// symbol or status are provider-wide.
func IsSymbolScoped(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Kind {
	case KindNotFound:
		return true
	case KindPermanent:
		return pe.Symbol != "" && pe.StatusCode != 0 && pe.StatusCode != http.StatusUnauthorized
	}
	return false
}

// IsTimeout reports a per-call deadline expiry
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
