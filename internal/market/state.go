package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TeamState is one team's budget/roster view inside the window.
type TeamState struct {
	TeamID                string
	RemainingBudget       decimal.Decimal
	RosterCount           int
	MinRosterSize         int
	NeedsEmergencySigning bool
	StrategyGenerated     bool
}

// State is the authoritative in-memory record of the window. It has exactly
// one writer at a time: round fan-outs read an immutable Snapshot and all
// mutation happens in the single merge pass that follows.
type State struct {
	SeasonID string

	Phase         Phase
	Round         uint
	TransferRound uint

	StableRounds         uint
	TransferStableRounds uint

	FreeAgents         []string
	Poachable          []string
	ActiveNegotiations []uint64
	CompletedTransfers []uint64

	Teams map[string]*TeamState

	// Per-round dedupe; never persisted, cleared on every phase advance.
	evaluated map[string]struct{}
}

func NewState(seasonID string) *State {
	return &State{
		SeasonID:  seasonID,
		Phase:     PhaseIntentionGeneration,
		Teams:     map[string]*TeamState{},
		evaluated: map[string]struct{}{},
	}
}

func (st *State) Team(id string) *TeamState {
	return st.Teams[id]
}

func (st *State) MarkTeamEvaluated(teamID string) {
	if st.evaluated == nil {
		st.evaluated = map[string]struct{}{}
	}
	st.evaluated[teamID] = struct{}{}
}

func (st *State) TeamEvaluated(teamID string) bool {
	_, ok := st.evaluated[teamID]
	return ok
}

func (st *State) EvaluatedCount() int {
	return len(st.evaluated)
}

func (st *State) ResetEvaluated() {
	st.evaluated = map[string]struct{}{}
}

func (st *State) IsFreeAgent(playerID string) bool {
	return contains(st.FreeAgents, playerID)
}

func (st *State) IsPoachable(playerID string) bool {
	return contains(st.Poachable, playerID)
}

// AddFreeAgent keeps the invariant that a player id lives in at most one of
// the free-agent and poachable pools.
func (st *State) AddFreeAgent(playerID string) {
	st.Poachable = remove(st.Poachable, playerID)
	if !contains(st.FreeAgents, playerID) {
		st.FreeAgents = append(st.FreeAgents, playerID)
	}
}

func (st *State) AddPoachable(playerID string) {
	st.FreeAgents = remove(st.FreeAgents, playerID)
	if !contains(st.Poachable, playerID) {
		st.Poachable = append(st.Poachable, playerID)
	}
}

func (st *State) RemoveFreeAgent(playerID string) {
	st.FreeAgents = remove(st.FreeAgents, playerID)
}

func (st *State) RemovePoachable(playerID string) {
	st.Poachable = remove(st.Poachable, playerID)
}

func (st *State) AddActiveNegotiation(id uint64) {
	for _, existing := range st.ActiveNegotiations {
		if existing == id {
			return
		}
	}
	st.ActiveNegotiations = append(st.ActiveNegotiations, id)
}

func (st *State) RemoveActiveNegotiation(id uint64) {
	next := st.ActiveNegotiations[:0]
	for _, existing := range st.ActiveNegotiations {
		if existing != id {
			next = append(next, existing)
		}
	}
	st.ActiveNegotiations = next
}

func (st *State) AddCompletedTransfer(id uint64) {
	for _, existing := range st.CompletedTransfers {
		if existing == id {
			return
		}
	}
	st.CompletedTransfers = append(st.CompletedTransfers, id)
}

// AdvancePhase moves to next and clears the per-round dedupe set. Backward
// moves are a bug in the caller and rejected.
func (st *State) AdvancePhase(next Phase) error {
	if next < st.Phase {
		return fmt.Errorf("phase may not move backward: %s -> %s", st.Phase, next)
	}
	st.Phase = next
	st.ResetEvaluated()
	return nil
}

// Snapshot deep-copies the state for concurrent readers. The fan-out tasks
// of a round see this frozen copy while the live State waits for the merge.
func (st *State) Snapshot() *State {
	cp := &State{
		SeasonID:             st.SeasonID,
		Phase:                st.Phase,
		Round:                st.Round,
		TransferRound:        st.TransferRound,
		StableRounds:         st.StableRounds,
		TransferStableRounds: st.TransferStableRounds,
		FreeAgents:           append([]string(nil), st.FreeAgents...),
		Poachable:            append([]string(nil), st.Poachable...),
		ActiveNegotiations:   append([]uint64(nil), st.ActiveNegotiations...),
		CompletedTransfers:   append([]uint64(nil), st.CompletedTransfers...),
		Teams:                make(map[string]*TeamState, len(st.Teams)),
		evaluated:            make(map[string]struct{}, len(st.evaluated)),
	}
	for id, team := range st.Teams {
		copied := *team
		cp.Teams[id] = &copied
	}
	for id := range st.evaluated {
		cp.evaluated[id] = struct{}{}
	}
	return cp
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	next := ids[:0]
	for _, existing := range ids {
		if existing != id {
			next = append(next, existing)
		}
	}
	return next
}
