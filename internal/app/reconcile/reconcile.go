package reconcile

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gmc-club/membership-api/internal/domain"
	"github.com/gmc-club/membership-api/internal/ports/out/recordstore"
)

// Row is one externally supplied record, as parsed from the import file.
// String fields use "" for "left blank"; a blank field never overwrites an
// existing value during merge.
type Row struct {
	Line int

	FirstName  string
	LastName   string
	Gender     string
	BirthDate  *time.Time
	BirthPlace string
	FiscalCode string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Province   string

	// StatusText is the source's status label: "Attivo" maps to active,
	// "Scaduto" to expired, "Sospeso" to pending, "Respinto" to rejected;
	// anything else defaults to pending.
	StatusText string

	Tessera        string
	MembershipYear string
	Fee            *decimal.Decimal
	Roles          []domain.RoleTag
	Notes          string

	RequestDate    *time.Time
	JoinDate       *time.Time
	RenewalDate    *time.Time
	ExpirationDate *time.Time

	GuardianFirstName string
	GuardianLastName  string
	GuardianBirthDate *time.Time

	PrivacyConsent *bool
	CommsConsent   *bool
}

// Summary reports the outcome of a reconciliation run.
type Summary struct {
	Created int
	Updated int
	// Skipped counts rows refused before the write-set was built (missing
	// firstName, lastName or birthDate).
	Skipped int
	// Failed counts records whose commit chunk was rejected by the store.
	Failed int
}

// Classify maps an import status label to its target partition. Pure.
func Classify(statusText string) (domain.Partition, domain.Status) {
	switch strings.ToLower(strings.TrimSpace(statusText)) {
	case "attivo":
		return domain.PartitionMembers, domain.StatusActive
	case "scaduto":
		return domain.PartitionMembers, domain.StatusExpired
	case "sospeso":
		return domain.PartitionApplications, domain.StatusPending
	case "respinto":
		return domain.PartitionApplications, domain.StatusRejected
	default:
		return domain.PartitionApplications, domain.StatusPending
	}
}

// Reconcile matches external rows against the existing collections and builds
// the write-set realizing the import. Members-partition rows match by tessera
// (falling back to the name+birthDate key when the row has no tessera);
// Applications-partition rows match by the (firstName, lastName, birthDate)
// composite key. Matched rows shallow-merge into the existing record, blank
// fields preserving what is already stored; unmatched rows become new records
// with freshly allocated ids. Allocated tesseras use the given prefix.
func Reconcile(rows []Row, members, applications []domain.Record, prefix string, newID func() domain.RecordID, now time.Time) (recordstore.Batch, Summary) {
	var batch recordstore.Batch
	var sum Summary

	membersByTessera := make(map[string]domain.Record, len(members))
	membersByName := make(map[string]domain.Record, len(members))
	for _, m := range members {
		if m.Tessera != "" {
			membersByTessera[m.Tessera] = m
		}
		membersByName[domain.NameKey(m.FirstName, m.LastName, m.BirthDate)] = m
	}
	applicationsByName := make(map[string]domain.Record, len(applications))
	for _, a := range applications {
		applicationsByName[domain.NameKey(a.FirstName, a.LastName, a.BirthDate)] = a
	}

	// Tessera numbers handed out during this run count as used immediately, so
	// two new rows for the same year never collide.
	usedByYear := make(map[string]map[int]bool)
	usedFor := func(year string) map[int]bool {
		if usedByYear[year] == nil {
			usedByYear[year] = domain.UsedTesseraNumbers(members, year)
		}
		return usedByYear[year]
	}

	for _, row := range rows {
		if strings.TrimSpace(row.FirstName) == "" || strings.TrimSpace(row.LastName) == "" || row.BirthDate == nil {
			sum.Skipped++
			continue
		}

		target, status := Classify(row.StatusText)

		var existing domain.Record
		var matched bool
		if target == domain.PartitionMembers {
			if row.Tessera != "" {
				existing, matched = membersByTessera[row.Tessera]
			}
			if !matched {
				existing, matched = membersByName[domain.NameKey(row.FirstName, row.LastName, *row.BirthDate)]
			}
		} else {
			existing, matched = applicationsByName[domain.NameKey(row.FirstName, row.LastName, *row.BirthDate)]
		}

		var rec domain.Record
		if matched {
			rec = mergeRow(existing.Clone(), row)
			sum.Updated++
		} else {
			rec = mergeRow(domain.Record{ID: newID()}, row)
			sum.Created++
		}

		if target == domain.PartitionMembers {
			finishMemberRecord(&rec, prefix, usedFor, now)
			membersByTessera[rec.Tessera] = rec
			membersByName[domain.NameKey(rec.FirstName, rec.LastName, rec.BirthDate)] = rec
		} else {
			rec.Tessera = ""
			rec.Rejected = status == domain.StatusRejected
			if rec.RequestDate == nil {
				reqDate := now
				rec.RequestDate = &reqDate
			}
			applicationsByName[domain.NameKey(rec.FirstName, rec.LastName, rec.BirthDate)] = rec
		}

		batch.Put(target, rec)
	}
	return batch, sum
}

// finishMemberRecord completes the member-only fields of a reconciled record:
// a tessera (row's own, or gap-filled for the membership year) and an
// expiration date ("Attivo" rows without one get Dec 31 of their year so their
// derived status stays active).
func finishMemberRecord(rec *domain.Record, prefix string, usedFor func(string) map[int]bool, now time.Time) {
	year := rec.MembershipYear
	if year == "" {
		year = strconv.Itoa(now.Year())
		rec.MembershipYear = year
	}
	if rec.Tessera == "" {
		used := usedFor(year)
		n := domain.NextTesseraNumber(used)
		used[n] = true
		rec.Tessera = domain.FormatTessera(prefix, year, n)
	} else if n, ok := domain.TesseraNumber(rec.Tessera); ok {
		usedFor(domain.TesseraYear(rec.Tessera))[n] = true
	}
	if rec.ExpirationDate == nil {
		if y, err := strconv.Atoi(year); err == nil {
			exp := domain.YearEnd(y)
			rec.ExpirationDate = &exp
		}
	}
	rec.Rejected = false
}

// mergeRow overwrites the record's fields with the row's non-blank values,
// field by field.
func mergeRow(rec domain.Record, row Row) domain.Record {
	setString := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	setString(&rec.FirstName, domain.NormalizeHumanName(row.FirstName))
	setString(&rec.LastName, domain.NormalizeHumanName(row.LastName))
	setString(&rec.Gender, row.Gender)
	setString(&rec.BirthPlace, row.BirthPlace)
	setString(&rec.FiscalCode, domain.NormalizeFiscalCode(row.FiscalCode))
	setString(&rec.Email, row.Email)
	setString(&rec.Phone, row.Phone)
	setString(&rec.Address, row.Address)
	setString(&rec.City, row.City)
	setString(&rec.PostalCode, row.PostalCode)
	setString(&rec.Province, row.Province)
	setString(&rec.MembershipYear, row.MembershipYear)
	setString(&rec.Tessera, row.Tessera)
	setString(&rec.Notes, row.Notes)

	if row.BirthDate != nil {
		rec.BirthDate = *row.BirthDate
	}
	if row.Fee != nil {
		rec.Fee = *row.Fee
	}
	if len(row.Roles) > 0 {
		rec.Roles = append([]domain.RoleTag(nil), row.Roles...)
	}
	if row.RequestDate != nil {
		rec.RequestDate = cloneTime(row.RequestDate)
	}
	if row.JoinDate != nil {
		rec.JoinDate = cloneTime(row.JoinDate)
	}
	if row.RenewalDate != nil {
		rec.RenewalDate = cloneTime(row.RenewalDate)
	}
	if row.ExpirationDate != nil {
		rec.ExpirationDate = cloneTime(row.ExpirationDate)
	}
	if row.PrivacyConsent != nil {
		rec.PrivacyConsent = *row.PrivacyConsent
	}
	if row.CommsConsent != nil {
		rec.CommsConsent = *row.CommsConsent
	}
	if row.GuardianFirstName != "" || row.GuardianLastName != "" || row.GuardianBirthDate != nil {
		g := rec.Guardian
		if g == nil {
			g = &domain.Guardian{}
			rec.Guardian = g
		}
		if row.GuardianFirstName != "" {
			g.FirstName = domain.NormalizeHumanName(row.GuardianFirstName)
		}
		if row.GuardianLastName != "" {
			g.LastName = domain.NormalizeHumanName(row.GuardianLastName)
		}
		if row.GuardianBirthDate != nil {
			g.BirthDate = *row.GuardianBirthDate
		}
	}
	return rec
}

func cloneTime(p *time.Time) *time.Time {
	v := *p
	return &v
}
