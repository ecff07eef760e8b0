// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageLimit parses a page-size query value, applying def when the value is
// missing or malformed and clamping the result to [1, max]. Used by the
// history endpoint so callers can never request an unbounded page.
//
// Example:
//
//	n := utils.PageLimit("", 50, 200)     // returns 50
//	n = utils.PageLimit("9999", 50, 200)  // returns 200
//	n = utils.PageLimit("-3", 50, 200)    // returns 1
func PageLimit(raw string, def, max int) int {
	n := AtoiDefault(raw, def)
	if n < 1 {
		n = 1
	}
	if n > max {
		n = max
	}
	return n
}
