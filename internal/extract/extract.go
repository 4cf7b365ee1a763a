// Package extract pulls structured entity fields out of raw message text
// using configurable patterns. Extraction always runs against the original
// text, not the normalized form, since normalization strips punctuation that
// the patterns rely on.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPricePattern matches an amount with optional thousands separators
// and an optional decimal part, optionally followed by a currency token
// (ETB or ብር). The amount is the first capture group.
const DefaultPricePattern = `(\d{1,3}(?:,\d{3})*(?:\.\d+)?)\s*(?:ETB|ብር)?`

// DefaultPhonePattern matches Ethiopian phone numbers: an optional
// international prefix (+251) or leading trunk zero, followed by a nine-digit
// national number starting with 9 or 7.
const DefaultPhonePattern = `(?:\+251|0)?(?:9|7)\d{8}`

var nonDigits = regexp.MustCompile(`\D`)

// Extractor finds price and phone entities in free-form text. Safe for
// concurrent use.
type Extractor struct {
	price *regexp.Regexp
	phone *regexp.Regexp
}

// New compiles an Extractor from the given patterns. Empty patterns fall
// back to the package defaults. The price pattern must carry at least one
// capture group holding the numeric amount.
func New(pricePattern, phonePattern string) (*Extractor, error) {
	if pricePattern == "" {
		pricePattern = DefaultPricePattern
	}
	if phonePattern == "" {
		phonePattern = DefaultPhonePattern
	}

	price, err := regexp.Compile(pricePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid price pattern: %w", err)
	}
	if price.NumSubexp() < 1 {
		return nil, fmt.Errorf("price pattern must contain a capture group for the amount")
	}
	phone, err := regexp.Compile(phonePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid phone pattern: %w", err)
	}

	return &Extractor{price: price, phone: phone}, nil
}

// Price returns the first price found in text with thousands separators
// stripped, preserving the exact source digits and decimal point. The second
// return value reports whether a match was found.
func (e *Extractor) Price(text string) (string, bool) {
	m := e.price.FindStringSubmatch(text)
	if m == nil || m[1] == "" {
		return "", false
	}
	return strings.ReplaceAll(m[1], ",", ""), true
}

// Phone returns the first phone number found in text with all non-digit
// characters stripped. The second return value reports whether a match was
// found.
func (e *Extractor) Phone(text string) (string, bool) {
	m := e.phone.FindString(text)
	if m == "" {
		return "", false
	}
	return nonDigits.ReplaceAllString(m, ""), true
}
