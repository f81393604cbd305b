package model

import (
	"math"
	"strconv"
)

// formatPct renders a percentage with one decimal place, e.g. "12.5%".
func formatPct(pct float64) string {
	rounded := math.Round(pct*10) / 10
	return strconv.FormatFloat(rounded, 'f', 1, 64) + "%"
}
