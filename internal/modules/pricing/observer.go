package pricing

import (
	"time"

	"github.com/aristath/pricesentry/internal/domain"
)

// Observer receives resolution events, typically for metrics
type Observer interface {
	ProviderCall(provider domain.ProviderID, outcome string, elapsed time.Duration)
	BreakerState(provider domain.ProviderID, state string)
	CacheLookup(category domain.Category, hit bool)
	Resolved(category domain.Category, source string, n int)
}

type nopObserver struct{}

func (nopObserver) ProviderCall(domain.ProviderID, string, time.Duration) {}
func (nopObserver) BreakerState(domain.ProviderID, string)                {}
func (nopObserver) CacheLookup(domain.Category, bool)                     {}
func (nopObserver) Resolved(domain.Category, string, int)                 {}

// outcome labels a provider call result
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsTimeout(err):
		return "timeout"
	case domain.IsRateLimited(err):
		return "rate_limited"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsPermanent(err):
		return "permanent"
	}
	return "error"
}
