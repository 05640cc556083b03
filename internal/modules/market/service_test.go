package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/cryptopilot/internal/domain"
)

type MockPriceClient struct {
	mock.Mock
}

func (m *MockPriceClient) SimplePrice(ctx context.Context, ids []string) (map[string]domain.AssetSnapshot, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.AssetSnapshot), args.Error(1)
}

func TestService_FetchSuccess(t *testing.T) {
	client := new(MockPriceClient)
	live := map[string]domain.AssetSnapshot{
		"solana": {Symbol: "solana", Price: 150, HasPrice: true},
	}
	client.On("SimplePrice", mock.Anything, []string{"solana"}).Return(live, nil)

	service := NewService(client, []string{"solana"}, time.Second, zerolog.Nop())
	snapshots := service.FetchUniverse(context.Background())

	assert.Equal(t, live, snapshots)
	client.AssertExpectations(t)
}

func TestService_FetchFallsBackOnFailure(t *testing.T) {
	client := new(MockPriceClient)
	client.On("SimplePrice", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	service := NewService(client, nil, time.Second, zerolog.Nop())
	snapshots := service.FetchUniverse(context.Background())

	require.NotEmpty(t, snapshots)
	for _, symbol := range FallbackSymbols {
		snapshot, ok := snapshots[symbol]
		require.True(t, ok, symbol)
		assert.True(t, snapshot.Priced())
		assert.False(t, snapshot.FetchedAt.IsZero())
	}
	assert.Equal(t, 45000.0, snapshots["bitcoin"].Price)
}

func TestService_FetchAppliesTimeout(t *testing.T) {
	client := new(MockPriceClient)
	client.On("SimplePrice", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
		}).
		Return(map[string]domain.AssetSnapshot{}, nil)

	service := NewService(client, []string{"bitcoin"}, 10*time.Second, zerolog.Nop())
	service.FetchUniverse(context.Background())
	client.AssertExpectations(t)
}

func TestService_DefaultUniverse(t *testing.T) {
	service := NewService(new(MockPriceClient), nil, time.Second, zerolog.Nop())

	universe := service.Universe()
	assert.Equal(t, DefaultUniverse, universe)
	assert.GreaterOrEqual(t, len(universe), 70)
	assert.Equal(t, "bitcoin", universe[0])

	universe[0] = "mutated"
	assert.Equal(t, "bitcoin", service.Universe()[0], "Universe returns a copy")
}

func TestOrdered(t *testing.T) {
	snapshots := map[string]domain.AssetSnapshot{
		"zcash":    {Symbol: "zcash"},
		"ethereum": {Symbol: "ethereum"},
		"bitcoin":  {Symbol: "bitcoin"},
		"aaa":      {Symbol: "aaa"},
	}

	ordered := Ordered([]string{"bitcoin", "ethereum", "missing"}, snapshots)

	symbols := make([]string, 0, len(ordered))
	for _, s := range ordered {
		symbols = append(symbols, s.Symbol)
	}
	assert.Equal(t, []string{"bitcoin", "ethereum", "aaa", "zcash"}, symbols)
}
