package model

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// LegendRow is one line of the placed-pieces table.
type LegendRow struct {
	Label      string `json:"label"`
	Dimensions string `json:"dimensions"`
}

var (
	parenthetical = regexp.MustCompile(`\s*\(.*?\)`)
	firstNumber   = regexp.MustCompile(`\d+`)
)

// ShortLabel strips parenthesised size hints from a label: "Pc 3 (150x500)" -> "Pc 3".
func ShortLabel(label string) string {
	return strings.TrimSpace(parenthetical.ReplaceAllString(label, ""))
}

// labelNumber returns the first integer in a label, or 0 if there is none.
func labelNumber(label string) int {
	m := firstNumber.FindString(label)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// Legend lists the placed pieces with their cut dimensions, ordered by the
// piece number embedded in each label.
func Legend(result PackingResult) []LegendRow {
	rows := make([]LegendRow, 0, len(result.Placements))
	for _, p := range result.Placements {
		rows = append(rows, LegendRow{
			Label:      ShortLabel(p.Piece.Label),
			Dimensions: FormatSize(p.PlacedWidth(), p.PlacedHeight()),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return labelNumber(rows[i].Label) < labelNumber(rows[j].Label)
	})
	return rows
}
