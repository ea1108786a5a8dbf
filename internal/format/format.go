// Package format renders tonnage figures for chat answers and the CLI.
package format

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	lakh     = 100000
	thousand = 1000
)

var printer = message.NewPrinter(language.English)

// Tons formats a tonnage using the Lakh / K / plain-tons convention.
//
//	Tons(250000) == "2.50 Lakh Tons"
//	Tons(-1500)  == "-1.5 K Tons"
//	Tons(950)    == "950 Tons"
func Tons(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fmt.Sprintf("%v", x)
	}
	abs := math.Abs(x)
	switch {
	case abs >= lakh:
		return fmt.Sprintf("%.2f Lakh Tons", x/lakh)
	case abs >= thousand:
		return fmt.Sprintf("%.1f K Tons", x/thousand)
	default:
		return printer.Sprintf("%.0f Tons", x)
	}
}

// Percent formats a percentage with one decimal place
func Percent(x float64) string {
	return fmt.Sprintf("%.1f%%", x)
}

// SignedPercent formats a percentage with an explicit sign
func SignedPercent(x float64) string {
	return fmt.Sprintf("%+.1f%%", x)
}

// Grouped formats x rounded to an integer with thousands separators
func Grouped(x float64) string {
	return printer.Sprintf("%.0f", x)
}

// Number formats an integer with thousands separators
func Number(n int) string {
	return printer.Sprintf("%d", n)
}

// TitleRegion turns an upper-case region name into display case
// ("WEST GODAVARI" -> "West Godavari").
func TitleRegion(name string) string {
	words := strings.Fields(strings.ToLower(name))
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
