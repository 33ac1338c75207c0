package domain

import (
	"strings"
	"time"
)

// NormalizeHumanName trims leading/trailing whitespace and collapses internal
// whitespace runs. Applied to person and guardian names at every boundary.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeFiscalCode upper-cases and strips whitespace from a fiscal code.
func NormalizeFiscalCode(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// NameKey builds the case-insensitive composite match key (firstName, lastName,
// birthDate) used to reconcile Applications-partition records.
func NameKey(firstName, lastName string, birthDate time.Time) string {
	return strings.ToLower(NormalizeHumanName(firstName)) + "\x00" +
		strings.ToLower(NormalizeHumanName(lastName)) + "\x00" +
		birthDate.Format("2006-01-02")
}
