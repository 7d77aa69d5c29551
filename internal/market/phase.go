package market

import "fmt"

// Phase is the transfer window state machine. Transitions are strictly
// forward-only; Completed is terminal.
type Phase int

const (
	PhaseIntentionGeneration Phase = iota
	PhaseStrategyGeneration
	PhaseRenewalProcessing
	PhaseFreeMarket
	PhaseTransferRounds
	PhaseCompleted
)

var phaseNames = map[Phase]string{
	PhaseIntentionGeneration: "intention_generation",
	PhaseStrategyGeneration:  "strategy_generation",
	PhaseRenewalProcessing:   "renewal_processing",
	PhaseFreeMarket:          "free_market",
	PhaseTransferRounds:      "transfer_rounds",
	PhaseCompleted:           "completed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ParsePhase rejects unknown strings outright. A stored phase that fails to
// parse means corrupted state, not something to paper over with a default.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown market phase %q", s)
}

func (p Phase) Terminal() bool {
	return p == PhaseCompleted
}

// Next returns the successor phase; ok is false at the terminal phase.
func (p Phase) Next() (Phase, bool) {
	if p >= PhaseCompleted {
		return PhaseCompleted, false
	}
	return p + 1, true
}

// TransitionPolicy decides, after a fully-evaluated round, whether the
// round-driven phases should advance. The pre-market phases advance on
// completeness signals instead and never consult this policy.
type TransitionPolicy struct {
	MaxFreeMarketRounds     uint
	MaxTransferRounds       uint
	StableRoundsThreshold   uint
	TransferStableThreshold uint
}

// ShouldAdvance must only be called after every team for the current round
// has been evaluated; mid-round evaluation would advance on incomplete data.
func (p TransitionPolicy) ShouldAdvance(st *State) bool {
	switch st.Phase {
	case PhaseFreeMarket:
		if len(st.FreeAgents) == 0 {
			return true
		}
		if st.StableRounds >= p.StableRoundsThreshold {
			return true
		}
		return st.Round >= p.MaxFreeMarketRounds
	case PhaseTransferRounds:
		if st.TransferRound < 1 {
			return false
		}
		if st.TransferStableRounds >= p.TransferStableThreshold {
			return true
		}
		return st.TransferRound >= p.MaxTransferRounds
	default:
		return false
	}
}
