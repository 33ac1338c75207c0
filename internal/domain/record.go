package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Guardian is the legal-guardian sub-record. It is required on activation of a
// record whose person is a minor at transition time.
type Guardian struct {
	FirstName string
	LastName  string
	BirthDate time.Time
}

// Complete reports whether all guardian fields are filled in.
func (g *Guardian) Complete() bool {
	return g != nil && g.FirstName != "" && g.LastName != "" && !g.BirthDate.IsZero()
}

// Record is the member record held by one of the two partitions. Optional
// string fields use "" for unset; optional dates use nil. Which fields are
// meaningful depends on the holding partition: only Members-partition records
// carry a Tessera, only Applications-partition records carry the Rejected marker.
type Record struct {
	ID RecordID

	FirstName  string
	LastName   string
	Gender     string
	BirthDate  time.Time
	BirthPlace string
	FiscalCode string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Province   string

	// PrivacyConsent is mandatory for activation; CommsConsent is optional.
	PrivacyConsent bool
	CommsConsent   bool

	Guardian *Guardian

	MembershipYear string
	Tessera        string
	Fee            decimal.Decimal
	Roles          []RoleTag

	// Notes is a prepend-only log of system-authored lifecycle events, followed
	// by whatever free text was already there.
	Notes string

	RequestDate    *time.Time
	JoinDate       *time.Time
	RenewalDate    *time.Time
	ExpirationDate *time.Time

	// Rejected is the explicit marker honored only in the Applications partition.
	Rejected bool
}

// IsMinor reports whether the person is under 18 at the given instant.
func (r Record) IsMinor(at time.Time) bool {
	if r.BirthDate.IsZero() {
		return false
	}
	age := at.Year() - r.BirthDate.Year()
	anniversary := time.Date(at.Year(), r.BirthDate.Month(), r.BirthDate.Day(), 0, 0, 0, 0, time.UTC)
	if dateOnly(at).Before(anniversary) {
		age--
	}
	return age < 18
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.Guardian != nil {
		g := *r.Guardian
		out.Guardian = &g
	}
	if r.Roles != nil {
		out.Roles = append([]RoleTag(nil), r.Roles...)
	}
	out.RequestDate = cloneTimePtr(r.RequestDate)
	out.JoinDate = cloneTimePtr(r.JoinDate)
	out.RenewalDate = cloneTimePtr(r.RenewalDate)
	out.ExpirationDate = cloneTimePtr(r.ExpirationDate)
	return out
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
