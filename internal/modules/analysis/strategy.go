// Package analysis provides the decision engine that turns market snapshots
// into buy/sell/hold decisions.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aristath/cryptopilot/internal/domain"
)

// Strategy thresholds and constants
const (
	MomentumThreshold    = 5.0
	MomentumConfidence   = 0.8
	NeutralConfidence    = 0.6
	ProviderConfidence   = 0.7
	RationaleLimit       = 100
	SystemPrompt         = "You are a professional cryptocurrency trading analyst."
	rationaleTruncSuffix = "..."
)

// Strategy produces a decision for one snapshot. Strategies may fail;
// the Engine converts failures into demo decisions.
type Strategy interface {
	Source() domain.DecisionSource
	Analyze(ctx context.Context, snapshot domain.AssetSnapshot) (domain.Decision, error)
}

// DemoStrategy is the rule-based momentum strategy. It is pure and never fails.
type DemoStrategy struct{}

// Source returns SourceDemo
func (DemoStrategy) Source() domain.DecisionSource {
	return domain.SourceDemo
}

// Analyze implements Strategy
func (s DemoStrategy) Analyze(_ context.Context, snapshot domain.AssetSnapshot) (domain.Decision, error) {
	return s.Decide(snapshot), nil
}

// Decide applies the 24h momentum rules
func (DemoStrategy) Decide(snapshot domain.AssetSnapshot) domain.Decision {
	change := snapshot.Change24h

	switch {
	case change > MomentumThreshold:
		return domain.Decision{
			Action:     domain.ActionBuy,
			Confidence: MomentumConfidence,
			Rationale:  fmt.Sprintf("Strong upward momentum: %.2f%%", change),
			Source:     domain.SourceDemo,
		}
	case change < -MomentumThreshold:
		return domain.Decision{
			Action:     domain.ActionSell,
			Confidence: MomentumConfidence,
			Rationale:  fmt.Sprintf("Strong downward momentum: %.2f%%", change),
			Source:     domain.SourceDemo,
		}
	default:
		return domain.Decision{
			Action:     domain.ActionHold,
			Confidence: NeutralConfidence,
			Rationale:  fmt.Sprintf("Moderate movement: %.2f%%", change),
			Source:     domain.SourceDemo,
		}
	}
}

// ProviderStrategy delegates analysis to an external text-completion service
type ProviderStrategy struct {
	completer domain.TextCompleter
	source    domain.DecisionSource
}

// NewProviderStrategy creates a strategy backed by completer, tagging results with source
func NewProviderStrategy(completer domain.TextCompleter, source domain.DecisionSource) *ProviderStrategy {
	return &ProviderStrategy{completer: completer, source: source}
}

// Source returns the provider this strategy is tagged with
func (s *ProviderStrategy) Source() domain.DecisionSource {
	return s.source
}

// Analyze implements Strategy
func (s *ProviderStrategy) Analyze(ctx context.Context, snapshot domain.AssetSnapshot) (domain.Decision, error) {
	text, err := s.completer.Complete(ctx, SystemPrompt, BuildPrompt(snapshot))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("%s completion failed: %w", s.source, err)
	}
	return ParseCompletion(text, s.source), nil
}

// BuildPrompt renders the analysis request for one snapshot
func BuildPrompt(snapshot domain.AssetSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze %s for cryptocurrency trading:\n\n", strings.ToUpper(snapshot.Symbol))
	b.WriteString("Current Data:\n")
	fmt.Fprintf(&b, "- Price: $%.4f\n", snapshot.Price)
	fmt.Fprintf(&b, "- 24h Change: %.2f%%\n", snapshot.Change24h)
	fmt.Fprintf(&b, "- Market Cap: $%.0f\n", snapshot.MarketCap)
	fmt.Fprintf(&b, "- Volume: $%.0f\n\n", snapshot.Volume24h)
	b.WriteString("Please provide:\n")
	b.WriteString("1. Trading decision (BUY/SELL/HOLD)\n")
	b.WriteString("2. Confidence level (0.0 to 1.0)\n")
	b.WriteString("3. Brief reasoning\n\n")
	b.WriteString("Consider market trends, volume, and volatility.")
	return b.String()
}

// ParseCompletion maps free-form provider text to a decision. BUY is checked
// before SELL. Confidence is a fixed placeholder; no score is extracted.
func ParseCompletion(text string, source domain.DecisionSource) domain.Decision {
	upper := strings.ToUpper(text)

	action := domain.ActionHold
	switch {
	case strings.Contains(upper, "BUY"):
		action = domain.ActionBuy
	case strings.Contains(upper, "SELL"):
		action = domain.ActionSell
	}

	return domain.Decision{
		Action:     action,
		Confidence: ProviderConfidence,
		Rationale:  truncate(text, RationaleLimit) + rationaleTruncSuffix,
		Source:     source,
	}
}

// truncate returns at most limit runes of s
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
