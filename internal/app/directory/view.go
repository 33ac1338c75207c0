// Package directory derives display-ready views over already-loaded record
// collections: filtering, sorting and pagination. Everything here is pure and
// synchronous; the caller re-runs it whenever the underlying collection changes.
package directory

import (
	"sort"
	"strings"
	"time"

	"github.com/gmc-club/membership-api/internal/domain"
)

// Sort keys with special comparison rules. Any other key compares the raw
// field value with standard string ordering.
const (
	SortByName    = "name"
	SortByTessera = "tessera"
)

// DefaultPageSize is used when the caller does not configure one.
const DefaultPageSize = 20

type Query struct {
	// Filter is matched case-insensitively as a substring of the full name in
	// both orderings, the email, the tessera and the formatted birth date.
	Filter string
	Sort   string
	Desc   bool
	// Page is 1-indexed and clamped into the valid range.
	Page int
}

// Entry is a record plus its derived status, ready for display.
type Entry struct {
	domain.Record
	Status domain.Status
}

type Page struct {
	Items     []Entry
	Page      int
	PageCount int
	Total     int
}

// View filters, sorts and paginates one partition's records.
func View(records []domain.Record, partition domain.Partition, now time.Time, q Query, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		if !matches(r, q.Filter) {
			continue
		}
		entries = append(entries, Entry{Record: r, Status: domain.DeriveStatus(r, partition, now)})
	}

	sortEntries(entries, q.Sort, q.Desc)

	total := len(entries)
	pageCount := (total + pageSize - 1) / pageSize
	if pageCount < 1 {
		pageCount = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > pageCount {
		page = pageCount
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return Page{
		Items:     entries[start:end],
		Page:      page,
		PageCount: pageCount,
		Total:     total,
	}
}

func matches(r domain.Record, filter string) bool {
	f := strings.ToLower(strings.TrimSpace(filter))
	if f == "" {
		return true
	}
	candidates := []string{
		r.FirstName + " " + r.LastName,
		r.LastName + " " + r.FirstName,
		r.Email,
		r.Tessera,
		formatBirthDate(r.BirthDate),
	}
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), f) {
			return true
		}
	}
	return false
}

func formatBirthDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

func sortEntries(entries []Entry, key string, desc bool) {
	switch key {
	case SortByTessera:
		// Compare the numeric suffix; records without a parseable one sort
		// last regardless of direction.
		sort.SliceStable(entries, func(i, j int) bool {
			ni, oki := domain.TesseraNumber(entries[i].Tessera)
			nj, okj := domain.TesseraNumber(entries[j].Tessera)
			if oki != okj {
				return oki
			}
			if !oki {
				return false
			}
			if ni == nj {
				return false
			}
			if desc {
				return ni > nj
			}
			return ni < nj
		})
	case SortByName, "":
		sort.SliceStable(entries, func(i, j int) bool {
			ki := nameSortKey(entries[i])
			kj := nameSortKey(entries[j])
			if ki == kj {
				return false
			}
			if desc {
				return ki > kj
			}
			return ki < kj
		})
	default:
		accessor := rawAccessor(key)
		sort.SliceStable(entries, func(i, j int) bool {
			vi := accessor(entries[i])
			vj := accessor(entries[j])
			if vi == vj {
				return false
			}
			if desc {
				return vi > vj
			}
			return vi < vj
		})
	}
}

func nameSortKey(e Entry) string {
	return strings.ToLower(e.LastName) + "\x00" + strings.ToLower(e.FirstName)
}

func rawAccessor(key string) func(Entry) string {
	switch key {
	case "firstName":
		return func(e Entry) string { return e.FirstName }
	case "lastName":
		return func(e Entry) string { return e.LastName }
	case "email":
		return func(e Entry) string { return e.Email }
	case "city":
		return func(e Entry) string { return e.City }
	case "membershipYear":
		return func(e Entry) string { return e.MembershipYear }
	case "status":
		return func(e Entry) string { return string(e.Status) }
	case "birthDate":
		return func(e Entry) string { return e.BirthDate.Format("2006-01-02") }
	case "requestDate":
		return func(e Entry) string { return formatInstant(e.RequestDate) }
	case "joinDate":
		return func(e Entry) string { return formatInstant(e.JoinDate) }
	case "expirationDate":
		return func(e Entry) string { return formatInstant(e.ExpirationDate) }
	default:
		return nameSortKey
	}
}

func formatInstant(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
