package fst

import (
	"fmt"
	"math"
	"sort"
)

var keyboardLayouts = map[string][]string{
	"qwerty": {"1234567890", "qwertyuiop", "asdfghjkl", "zxcvbnm"},
	"qwertz": {"1234567890", "qwertzuiopü", "asdfghjklöä", "yxcvbnm"},
	"azerty": {"1234567890", "azertyuiop", "qsdfghjklm", "wxcvbn"},
	"jcuken": {"1234567890", "йцукенгшщзхъ", "фывапролджэ", "ячсмитьбю"},
}

func KeyboardLayouts() []string {
	names := make([]string, 0, len(keyboardLayouts))
	for name := range keyboardLayouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type keyPos struct{ row, col int }

func layoutPositions(rows []string) map[rune]keyPos {
	m := make(map[rune]keyPos)
	for r, row := range rows {
		c := 0
		for _, ch := range row {
			m[ch] = keyPos{r, c}
			c++
		}
	}
	return m
}

func keyDistance(a, b keyPos) float64 {
	dr := float64(a.row - b.row)
	dc := float64(a.col - b.col)
	return math.Sqrt(dr*dr + dc*dc)
}

// ApplyKeyboard lowers the substitution cost between keys that sit next to
// each other on the named layout. Direct neighbours cost near, diagonal
// neighbours cost halfway between near and the model's default.
func (m *ErrorModel) ApplyKeyboard(layout string, near float32) error {
	rows, ok := keyboardLayouts[layout]
	if !ok {
		return fmt.Errorf("unknown keyboard layout %q", layout)
	}
	if near < 0 {
		return fmt.Errorf("invalid keyboard cost %v", near)
	}

	diagonal := (near + m.Substitute) / 2
	pos := layoutPositions(rows)
	for a, pa := range pos {
		for b, pb := range pos {
			if a == b {
				continue
			}
			var cost float32
			switch d := keyDistance(pa, pb); {
			case d <= 1.0:
				cost = near
			case d <= 1.5:
				cost = diagonal
			default:
				continue
			}
			pair := [2]rune{a, b}
			if existing, ok := m.SubstituteCost[pair]; ok && existing <= cost {
				continue
			}
			m.SubstituteCost[pair] = cost
		}
	}
	return nil
}
