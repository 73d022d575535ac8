package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"intrabar/internal/market"
	"intrabar/internal/regime"
	"intrabar/internal/signal"
)

// VotePolicy selects how a CompositeStrategy combines its sub-strategies'
// already-risk-filtered signals.
type VotePolicy string

const (
	// PolicyFirst takes the first non-none signal in declaration order.
	PolicyFirst VotePolicy = "first"
	// PolicyUnanimous requires every non-none signal to be identical.
	PolicyUnanimous VotePolicy = "unanimous"
	// PolicyMajority takes the plurality vote; ties resolve in the fixed
	// check order BUY, SELL, CLOSE.
	PolicyMajority VotePolicy = "majority"
	// PolicyWeighted is majority voting with per-strategy weights, same
	// tie order.
	PolicyWeighted VotePolicy = "weighted"
)

// voteOrder is the deterministic tie-break order for all voting policies.
var voteOrder = [3]signal.Signal{signal.Buy, signal.Sell, signal.Close}

// CompositeStrategy combines multiple strategies' filtered outputs under one
// voting policy.
type CompositeStrategy struct {
	strategies []*Strategy
	weights    []float64
	policy     VotePolicy
}

// NewComposite creates a composite. Weights are required for PolicyWeighted
// and must match the strategy count; other policies ignore them.
func NewComposite(strategies []*Strategy, weights []float64, policy VotePolicy) (*CompositeStrategy, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("composite requires at least one strategy")
	}
	switch policy {
	case PolicyFirst, PolicyUnanimous, PolicyMajority:
	case PolicyWeighted:
		if len(weights) != len(strategies) {
			return nil, fmt.Errorf("weighted policy requires %d weights, got %d", len(strategies), len(weights))
		}
	default:
		return nil, fmt.Errorf("unknown vote policy %q", policy)
	}
	return &CompositeStrategy{strategies: strategies, weights: weights, policy: policy}, nil
}

// PrecomputeSignals precomputes every sub-strategy.
func (c *CompositeStrategy) PrecomputeSignals(ticks []market.Tick) error {
	for _, s := range c.strategies {
		if err := s.PrecomputeSignals(ticks); err != nil {
			return err
		}
	}
	return nil
}

// SignalAt collects each sub-strategy's risk-filtered signal at index and
// combines them under the configured policy. All-none inputs yield None
// under any policy.
func (c *CompositeStrategy) SignalAt(index int, position int64, equity decimal.Decimal, ret float64, reg regime.Regime) (signal.Signal, error) {
	votes := make([]signal.Signal, len(c.strategies))
	for i, s := range c.strategies {
		sig, err := s.SignalAt(index, position, equity, ret, reg)
		if err != nil {
			return signal.None, err
		}
		votes[i] = sig
	}
	return c.combine(votes), nil
}

func (c *CompositeStrategy) combine(votes []signal.Signal) signal.Signal {
	switch c.policy {
	case PolicyFirst:
		for _, v := range votes {
			if v != signal.None {
				return v
			}
		}
		return signal.None

	case PolicyUnanimous:
		agreed := signal.None
		for _, v := range votes {
			if v == signal.None {
				continue
			}
			if agreed == signal.None {
				agreed = v
			} else if v != agreed {
				return signal.None
			}
		}
		return agreed

	case PolicyWeighted:
		tally := make(map[signal.Signal]float64, 3)
		for i, v := range votes {
			if v != signal.None {
				tally[v] += c.weights[i]
			}
		}
		return winner(tally)

	default: // PolicyMajority
		tally := make(map[signal.Signal]float64, 3)
		for _, v := range votes {
			if v != signal.None {
				tally[v]++
			}
		}
		return winner(tally)
	}
}

// winner picks the signal with the highest tally, resolving ties in the
// fixed order BUY, SELL, CLOSE. An empty tally yields None.
func winner(tally map[signal.Signal]float64) signal.Signal {
	best := signal.None
	bestWeight := 0.0
	for _, s := range voteOrder {
		if w, ok := tally[s]; ok && w > bestWeight {
			best = s
			bestWeight = w
		}
	}
	return best
}
