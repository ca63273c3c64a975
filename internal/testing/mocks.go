package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aristath/pricesentry/internal/domain"
)

// MockPriceProvider is a testify mock of domain.PriceProvider
type MockPriceProvider struct {
	mock.Mock
	ProviderID domain.ProviderID
	Batch      bool
}

func (m *MockPriceProvider) ID() domain.ProviderID { return m.ProviderID }

func (m *MockPriceProvider) SupportsBatch() bool { return m.Batch }

func (m *MockPriceProvider) FetchBatch(ctx context.Context, symbols []string, category domain.Category) (map[string]domain.PriceResult, error) {
	args := m.Called(ctx, symbols, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.PriceResult), args.Error(1)
}

func (m *MockPriceProvider) FetchOne(ctx context.Context, symbol string, category domain.Category) (domain.PriceResult, error) {
	args := m.Called(ctx, symbol, category)
	return args.Get(0).(domain.PriceResult), args.Error(1)
}

// MockMailTransport is a testify mock of domain.MailTransport
type MockMailTransport struct {
	mock.Mock
}

func (m *MockMailTransport) Send(ctx context.Context, msg domain.MailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
