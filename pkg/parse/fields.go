package parse

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	nonPriceChars = regexp.MustCompile(`[^\d.,]`)
	decimalRun    = regexp.MustCompile(`\d+\.?\d*`)
	integerRun    = regexp.MustCompile(`\d+`)
)

// CleanPrice keeps only digits, '.' and ',' from text.
// The result stays a display string; no currency or locale interpretation.
func CleanPrice(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	price := nonPriceChars.ReplaceAllString(strings.TrimSpace(text), "")
	if price == "" {
		return "", false
	}
	return price, true
}

// CleanRating returns the first decimal number found in text. No range check:
// "45" yields 45.0.
func CleanRating(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	match := decimalRun.FindString(text)
	if match == "" {
		return 0, false
	}
	rating, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return rating, true
}

// CleanReviewCount drops thousands separators and returns the first integer run
func CleanReviewCount(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	match := integerRun.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return 0, false
	}
	count, err := strconv.Atoi(match)
	if err != nil {
		return 0, false // overflow
	}
	return count, true
}

var percentRun = regexp.MustCompile(`\d+(?:\.\d+)?\s*%`)

// CleanDiscount pulls a "NN%" figure out of badge text such as "20% off"
func CleanDiscount(text string) (string, bool) {
	match := percentRun.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.ReplaceAll(match, " ", ""), true
}
