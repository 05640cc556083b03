// Package market provides the market data source for analysis cycles.
package market

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/domain"
)

// PriceClient fetches raw snapshots from an external price API
type PriceClient interface {
	SimplePrice(ctx context.Context, ids []string) (map[string]domain.AssetSnapshot, error)
}

// Service fetches snapshots and never fails: any client error degrades to
// FallbackSnapshots.
type Service struct {
	client   PriceClient
	universe []string
	timeout  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a market data service. An empty universe selects DefaultUniverse.
func NewService(client PriceClient, universe []string, timeout time.Duration, log zerolog.Logger) *Service {
	if len(universe) == 0 {
		universe = DefaultUniverse
	}
	return &Service{
		client:   client,
		universe: append([]string(nil), universe...),
		timeout:  timeout,
		log:      log.With().Str("service", "market").Logger(),
		now:      time.Now,
	}
}

// Universe returns the configured symbols in priority order
func (s *Service) Universe() []string {
	return append([]string(nil), s.universe...)
}

// Fetch returns snapshots for symbols, falling back to static data on failure
func (s *Service) Fetch(ctx context.Context, symbols []string) map[string]domain.AssetSnapshot {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	snapshots, err := s.client.SimplePrice(ctx, symbols)
	if err != nil {
		s.log.Warn().Err(err).Msg("Price API unavailable, using fallback data")
		return s.fallback()
	}
	return snapshots
}

// FetchUniverse fetches every configured symbol
func (s *Service) FetchUniverse(ctx context.Context) map[string]domain.AssetSnapshot {
	return s.Fetch(ctx, s.universe)
}

func (s *Service) fallback() map[string]domain.AssetSnapshot {
	now := s.now()
	snapshots := FallbackSnapshots()
	for symbol, snapshot := range snapshots {
		snapshot.FetchedAt = now
		snapshots[symbol] = snapshot
	}
	return snapshots
}

// Ordered returns the snapshots in priority order: symbols from the universe
// first, then any remaining entries sorted by symbol.
func Ordered(universe []string, snapshots map[string]domain.AssetSnapshot) []domain.AssetSnapshot {
	ordered := make([]domain.AssetSnapshot, 0, len(snapshots))
	seen := make(map[string]bool, len(snapshots))

	for _, symbol := range universe {
		if snapshot, ok := snapshots[symbol]; ok && !seen[symbol] {
			ordered = append(ordered, snapshot)
			seen[symbol] = true
		}
	}

	var rest []string
	for symbol := range snapshots {
		if !seen[symbol] {
			rest = append(rest, symbol)
		}
	}
	sort.Strings(rest)
	for _, symbol := range rest {
		ordered = append(ordered, snapshots[symbol])
	}

	return ordered
}
