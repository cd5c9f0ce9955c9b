package fst

import (
	"fmt"
	"math"
	"sort"
)

// Epsilon is the symbol at index 0. Arcs labelled with it consume no input
// and produce no output.
const Epsilon rune = -1

const StartState uint32 = 0

type Transition struct {
	Symbol uint32
	Target uint32
	Weight float32
}

// Automaton is a weighted acceptor over runes. States and transitions are
// read from fixed-size records on demand.
type Automaton struct {
	symbols []rune
	index   map[rune]uint32
	states  []byte
	trans   []byte
}

func newAutomaton(symbols []rune, states, trans []byte) *Automaton {
	index := make(map[rune]uint32, len(symbols))
	for i, r := range symbols {
		if i == 0 {
			continue
		}
		index[r] = uint32(i)
	}
	return &Automaton{
		symbols: symbols,
		index:   index,
		states:  states,
		trans:   trans,
	}
}

func (a *Automaton) NumStates() uint32 {
	return uint32(len(a.states) / stateSize)
}

func (a *Automaton) NumTransitions() uint32 {
	return uint32(len(a.trans) / transitionSize)
}

func (a *Automaton) NumSymbols() int {
	return len(a.symbols)
}

// Symbol returns the rune for a symbol index, Epsilon for index 0.
func (a *Automaton) Symbol(i uint32) rune {
	return a.symbols[i]
}

func (a *Automaton) SymbolIndex(r rune) (uint32, bool) {
	i, ok := a.index[r]
	return i, ok
}

// Final reports whether state is final and its final weight.
func (a *Automaton) Final(state uint32) (float32, bool) {
	rec := a.states[int(state)*stateSize:]
	w := math.Float32frombits(le.Uint32(rec[8:12]))
	if math.IsNaN(float64(w)) {
		return 0, false
	}
	return w, true
}

// Arcs returns the index range [first, first+count) of the state's transitions.
func (a *Automaton) Arcs(state uint32) (first, count uint32) {
	rec := a.states[int(state)*stateSize:]
	return le.Uint32(rec[0:4]), le.Uint32(rec[4:8])
}

func (a *Automaton) Transition(i uint32) Transition {
	rec := a.trans[int(i)*transitionSize:]
	return Transition{
		Symbol: le.Uint32(rec[0:4]),
		Target: le.Uint32(rec[4:8]),
		Weight: math.Float32frombits(le.Uint32(rec[8:12])),
	}
}

// Lookup returns the transitions of state labelled with symbol. Transitions
// of a state are sorted by symbol, so this is a binary search.
func (a *Automaton) Lookup(state, symbol uint32) (lo, hi uint32) {
	first, count := a.Arcs(state)
	i := sort.Search(int(count), func(k int) bool {
		return a.Transition(first+uint32(k)).Symbol >= symbol
	})
	j := i
	for j < int(count) && a.Transition(first+uint32(j)).Symbol == symbol {
		j++
	}
	return first + uint32(i), first + uint32(j)
}

// Validate checks the structural invariants the search relies on.
func (a *Automaton) Validate() error {
	nstates := a.NumStates()
	ntrans := a.NumTransitions()
	nsym := uint32(len(a.symbols))

	if nstates == 0 {
		return fmt.Errorf("automaton has no start state")
	}

	for s := uint32(0); s < nstates; s++ {
		if w, final := a.Final(s); final && (w < 0 || math.IsInf(float64(w), 0)) {
			return fmt.Errorf("state %d: invalid final weight %v", s, w)
		}

		first, count := a.Arcs(s)
		if uint64(first)+uint64(count) > uint64(ntrans) {
			return fmt.Errorf("state %d: transitions [%d,+%d) out of range", s, first, count)
		}

		var prev uint32
		for i := first; i < first+count; i++ {
			t := a.Transition(i)
			if t.Symbol >= nsym {
				return fmt.Errorf("transition %d: unknown symbol %d", i, t.Symbol)
			}
			if t.Target >= nstates {
				return fmt.Errorf("transition %d: target %d out of range", i, t.Target)
			}
			w := float64(t.Weight)
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				return fmt.Errorf("transition %d: invalid weight %v", i, t.Weight)
			}
			if i > first && t.Symbol < prev {
				return fmt.Errorf("state %d: transitions not sorted by symbol", s)
			}
			prev = t.Symbol
		}
	}
	return nil
}
