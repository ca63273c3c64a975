package domain

import "context"

// PriceProvider is one external quote source in the fallback chain.
// FetchBatch may return a partial map; symbols missing from it are not an error.
type PriceProvider interface {
	ID() ProviderID
	SupportsBatch() bool
	FetchBatch(ctx context.Context, symbols []string, category Category) (map[string]PriceResult, error)
	FetchOne(ctx context.Context, symbol string, category Category) (PriceResult, error)
}

// MailTransport delivers a rendered notification
type MailTransport interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailMessage is the payload handed to a transport
type MailMessage struct {
	From    string
	Subject string
	HTML    string
	To      []string
	Bcc     []string
}

// RateGate blocks until a provider may be called again
type RateGate interface {
	Acquire(ctx context.Context, id ProviderID) error
}
