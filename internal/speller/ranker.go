package speller

import (
	"context"
	"sort"

	"github.com/alucardeht/fstspell/internal/fst"
)

const (
	DefaultLimit    = 10
	DefaultMaxEdits = 2
	MaxEditCeiling  = 4
	DefaultMaxSteps = 100_000
)

// SearchOptions tightens the limits an archive declares. Zero values keep
// the archive's own settings.
type SearchOptions struct {
	MaxEdits int
	MaxCost  float32
	MaxSteps int
}

type Suggestion struct {
	Value  string  `json:"value"`
	Cost   float32 `json:"cost"`
	Weight float32 `json:"weight"`
}

type nodeKey struct {
	pos   int
	state uint32
	edits int
	out   string
}

// search is a best-first walk of the automaton that consumes the input
// while allowing weighted edits. Nodes leave the queue in order of
// (edit cost, path weight), so the first time a surface is emitted it is
// at its minimum cost.
type search struct {
	a        *fst.Automaton
	m        *fst.ErrorModel
	input    []rune
	maxEdits int
	maxCost  float32
	maxSteps int
	limit    int

	queue    nodeQueue
	expanded map[nodeKey]struct{}
	seq      uint64
	steps    int
}

func (s *search) run(ctx context.Context) (results []Suggestion, truncated bool) {
	s.expanded = make(map[nodeKey]struct{})
	seen := make(map[string]struct{})

	s.queue.push(&searchNode{pos: 0, state: fst.StartState})

	for s.queue.Len() > 0 && len(results) < s.limit {
		if s.steps >= s.maxSteps {
			return results, true
		}
		if s.steps&1023 == 0 && ctx.Err() != nil {
			return results, true
		}
		s.steps++

		n := s.queue.pop()
		if n.terminal {
			if _, dup := seen[n.surface]; dup {
				continue
			}
			seen[n.surface] = struct{}{}
			results = append(results, Suggestion{Value: n.surface, Cost: n.cost, Weight: n.weight})
			continue
		}

		key := nodeKey{pos: n.pos, state: n.state, edits: n.edits, out: string(n.out)}
		if _, done := s.expanded[key]; done {
			continue
		}
		s.expanded[key] = struct{}{}
		s.expand(n)
	}
	return results, false
}

func (s *search) expand(n *searchNode) {
	a := s.a
	atEnd := n.pos == len(s.input)

	if atEnd {
		if fw, ok := a.Final(n.state); ok {
			s.seq++
			s.queue.push(&searchNode{
				terminal: true,
				surface:  string(n.out),
				cost:     n.cost,
				weight:   n.weight + fw,
				seq:      s.seq,
			})
		}
	}

	canEdit := n.edits < s.maxEdits
	var in rune
	if !atEnd {
		in = s.input[n.pos]
	}

	first, count := a.Arcs(n.state)
	for i := first; i < first+count; i++ {
		t := a.Transition(i)
		if t.Symbol == 0 {
			s.child(n, n.pos, t.Target, n.out, 0, t.Weight, 0)
			continue
		}
		r := a.Symbol(t.Symbol)
		if !atEnd {
			if r == in {
				s.child(n, n.pos+1, t.Target, extend(n.out, r), 0, t.Weight, 0)
			} else if canEdit {
				s.child(n, n.pos+1, t.Target, extend(n.out, r), s.m.SubstitutionCost(in, r), t.Weight, 1)
			}
		}
		if canEdit {
			s.child(n, n.pos, t.Target, extend(n.out, r), s.m.InsertionCost(r), t.Weight, 1)
		}
	}

	if !canEdit || atEnd {
		return
	}

	s.child(n, n.pos+1, n.state, n.out, s.m.DeletionCost(in), 0, 1)

	if !s.m.Transpositions || n.pos+1 >= len(s.input) {
		return
	}
	x, y := s.input[n.pos], s.input[n.pos+1]
	if x == y {
		return
	}
	sx, okx := a.SymbolIndex(x)
	sy, oky := a.SymbolIndex(y)
	if !okx || !oky {
		return
	}
	lo, hi := a.Lookup(n.state, sy)
	for i := lo; i < hi; i++ {
		t1 := a.Transition(i)
		lo2, hi2 := a.Lookup(t1.Target, sx)
		for j := lo2; j < hi2; j++ {
			t2 := a.Transition(j)
			s.child(n, n.pos+2, t2.Target, extend(n.out, y, x), s.m.TranspositionCost(), t1.Weight+t2.Weight, 1)
		}
	}
}

func (s *search) child(parent *searchNode, pos int, state uint32, out []rune, cost, weight float32, edits int) {
	c := &searchNode{
		pos:    pos,
		state:  state,
		out:    out,
		cost:   parent.cost + cost,
		weight: parent.weight + weight,
		edits:  parent.edits + edits,
	}
	if s.maxCost > 0 && c.cost > s.maxCost {
		return
	}
	s.seq++
	c.seq = s.seq
	s.queue.push(c)
}

func extend(out []rune, rs ...rune) []rune {
	n := make([]rune, len(out), len(out)+len(rs))
	copy(n, out)
	return append(n, rs...)
}

// mergeSuggestions orders by cost, weight and surface, keeps the first of
// each surface and truncates to limit.
func mergeSuggestions(items []Suggestion, limit int) []Suggestion {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Cost != items[j].Cost {
			return items[i].Cost < items[j].Cost
		}
		if items[i].Weight != items[j].Weight {
			return items[i].Weight < items[j].Weight
		}
		return items[i].Value < items[j].Value
	})
	out := items[:0]
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.Value]; dup {
			continue
		}
		seen[it.Value] = struct{}{}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}
