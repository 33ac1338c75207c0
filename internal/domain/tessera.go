package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTessera renders a card identifier as "PREFIX-YEAR-N".
func FormatTessera(prefix string, year string, n int) string {
	return fmt.Sprintf("%s-%s-%d", prefix, year, n)
}

// TesseraNumber extracts the numeric suffix of a card identifier. The second
// return value is false when the identifier is empty or the suffix is not a
// positive integer.
func TesseraNumber(tessera string) (int, bool) {
	i := strings.LastIndexByte(tessera, '-')
	if i < 0 || i == len(tessera)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(tessera[i+1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// TesseraYear extracts the year segment of a card identifier ("GMC-2025-3"
// yields "2025"). Returns "" when the identifier does not have three segments.
func TesseraYear(tessera string) string {
	parts := strings.Split(tessera, "-")
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-2]
}

// NextTesseraNumber allocates the next numeric suffix for a year by gap-filling:
// the smallest positive integer not in the used set. {1,2,4} yields 3; {1,2,3}
// yields 4. Numbers freed by deletion are therefore reused before the sequence
// grows.
func NextTesseraNumber(used map[int]bool) int {
	for n := 1; ; n++ {
		if !used[n] {
			return n
		}
	}
}

// UsedTesseraNumbers collects the numeric suffixes already assigned for a year
// across the given records.
func UsedTesseraNumbers(records []Record, year string) map[int]bool {
	used := make(map[int]bool)
	for _, r := range records {
		if r.Tessera == "" || TesseraYear(r.Tessera) != year {
			continue
		}
		if n, ok := TesseraNumber(r.Tessera); ok {
			used[n] = true
		}
	}
	return used
}
