package fst

import (
	"fmt"
	"math"
)

// ErrorModel holds the edit costs used when searching for corrections.
// Per-symbol and per-pair overrides take precedence over the defaults.
type ErrorModel struct {
	Insert         float32
	Delete         float32
	Substitute     float32
	Transpose      float32
	Transpositions bool

	InsertCost     map[rune]float32
	DeleteCost     map[rune]float32
	SubstituteCost map[[2]rune]float32
}

func NewErrorModel() *ErrorModel {
	return &ErrorModel{
		Insert:         1,
		Delete:         1,
		Substitute:     1,
		Transpose:      1,
		Transpositions: true,
		InsertCost:     make(map[rune]float32),
		DeleteCost:     make(map[rune]float32),
		SubstituteCost: make(map[[2]rune]float32),
	}
}

// InsertionCost is the cost of producing r without consuming input.
func (m *ErrorModel) InsertionCost(r rune) float32 {
	if c, ok := m.InsertCost[r]; ok {
		return c
	}
	return m.Insert
}

// DeletionCost is the cost of consuming input r without producing output.
func (m *ErrorModel) DeletionCost(r rune) float32 {
	if c, ok := m.DeleteCost[r]; ok {
		return c
	}
	return m.Delete
}

func (m *ErrorModel) SubstitutionCost(from, to rune) float32 {
	if c, ok := m.SubstituteCost[[2]rune{from, to}]; ok {
		return c
	}
	return m.Substitute
}

func (m *ErrorModel) TranspositionCost() float32 {
	return m.Transpose
}

func (m *ErrorModel) Validate() error {
	check := func(name string, v float32) error {
		if v < 0 || math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%s cost %v must be a finite non-negative number", name, v)
		}
		return nil
	}
	for name, v := range map[string]float32{
		"insert": m.Insert, "delete": m.Delete, "substitute": m.Substitute, "transpose": m.Transpose,
	} {
		if err := check(name, v); err != nil {
			return err
		}
	}
	for r, v := range m.InsertCost {
		if err := check(fmt.Sprintf("insert %q", r), v); err != nil {
			return err
		}
	}
	for r, v := range m.DeleteCost {
		if err := check(fmt.Sprintf("delete %q", r), v); err != nil {
			return err
		}
	}
	for p, v := range m.SubstituteCost {
		if err := check(fmt.Sprintf("substitute %q->%q", p[0], p[1]), v); err != nil {
			return err
		}
	}
	return nil
}
