package domain

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestDeriveStatus_Members(t *testing.T) {
	t.Parallel()

	today := date(2025, time.June, 15)

	cases := []struct {
		name       string
		expiration *time.Time
		want       Status
	}{
		{"expired strictly before today", datePtr(2024, time.December, 31), StatusExpired},
		{"expires today is still active", datePtr(2025, time.June, 15), StatusActive},
		{"expires later", datePtr(2025, time.December, 31), StatusActive},
		{"legacy record without expiration", nil, StatusActive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStatus(Record{ExpirationDate: tc.expiration}, PartitionMembers, today)
			if got != tc.want {
				t.Fatalf("DeriveStatus=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestDeriveStatus_IgnoresTimeOfDay(t *testing.T) {
	t.Parallel()

	// Expiration at 23:59 on the same calendar day as "now" must not read as expired.
	exp := time.Date(2025, time.June, 15, 23, 59, 0, 0, time.UTC)
	now := time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC)
	if got := DeriveStatus(Record{ExpirationDate: &exp}, PartitionMembers, now); got != StatusActive {
		t.Fatalf("DeriveStatus=%q, want active", got)
	}
}

func TestDeriveStatus_Applications(t *testing.T) {
	t.Parallel()

	today := date(2025, time.June, 15)
	if got := DeriveStatus(Record{}, PartitionApplications, today); got != StatusPending {
		t.Fatalf("DeriveStatus=%q, want pending", got)
	}
	if got := DeriveStatus(Record{Rejected: true}, PartitionApplications, today); got != StatusRejected {
		t.Fatalf("DeriveStatus=%q, want rejected", got)
	}
	// The expiration date is meaningless outside the Members partition.
	if got := DeriveStatus(Record{ExpirationDate: datePtr(2020, time.January, 1)}, PartitionApplications, today); got != StatusPending {
		t.Fatalf("DeriveStatus=%q, want pending", got)
	}
}

func TestDeriveStatus_YoungMemberWithoutExpiration(t *testing.T) {
	t.Parallel()

	now := date(2025, time.June, 15)
	r := Record{BirthDate: date(2020, time.June, 15)}
	if got := DeriveStatus(r, PartitionMembers, now); got != StatusActive {
		t.Fatalf("DeriveStatus=%q, want active", got)
	}
}

func TestIsMinor(t *testing.T) {
	t.Parallel()

	at := date(2025, time.June, 15)
	cases := []struct {
		name  string
		birth time.Time
		want  bool
	}{
		{"five years old", date(2020, time.June, 15), true},
		{"eighteenth birthday today", date(2007, time.June, 15), false},
		{"eighteen tomorrow", date(2007, time.June, 16), true},
		{"adult", date(1990, time.January, 1), false},
		{"zero birth date", time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := (Record{BirthDate: tc.birth}).IsMinor(at); got != tc.want {
				t.Fatalf("IsMinor=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestYearEnd(t *testing.T) {
	t.Parallel()

	got := YearEnd(2025)
	if got.Year() != 2025 || got.Month() != time.December || got.Day() != 31 {
		t.Fatalf("YearEnd=%v", got)
	}
}
