package directory

import (
	"testing"
	"time"

	"github.com/gmc-club/membership-api/internal/domain"
)

var now = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

func rec(id, first, last, email, tessera string) domain.Record {
	return domain.Record{
		ID:        domain.RecordID(id),
		FirstName: first,
		LastName:  last,
		Email:     email,
		Tessera:   tessera,
		BirthDate: time.Date(1990, time.May, 2, 0, 0, 0, 0, time.UTC),
	}
}

func ids(p Page) []string {
	out := make([]string, 0, len(p.Items))
	for _, e := range p.Items {
		out = append(out, string(e.ID))
	}
	return out
}

func TestView_FilterMatchesBothNameOrderings(t *testing.T) {
	t.Parallel()

	records := []domain.Record{
		rec("1", "Mario", "Rossi", "mario@example.com", ""),
		rec("2", "Anna", "Bianchi", "anna@example.com", ""),
	}

	for _, filter := range []string{"mario rossi", "ROSSI MARIO", "rossi ma"} {
		p := View(records, domain.PartitionApplications, now, Query{Filter: filter}, 10)
		if p.Total != 1 || p.Items[0].ID != "1" {
			t.Fatalf("filter %q: %v", filter, ids(p))
		}
	}
}

func TestView_FilterMatchesEmailTesseraAndBirthDate(t *testing.T) {
	t.Parallel()

	r := rec("1", "Mario", "Rossi", "mario@example.com", "GMC-2025-7")
	records := []domain.Record{r, rec("2", "Anna", "Bianchi", "anna@x.it", "")}

	for _, filter := range []string{"mario@", "gmc-2025-7", "02/05/1990"} {
		p := View(records, domain.PartitionMembers, now, Query{Filter: filter}, 10)
		if p.Total != 1 || p.Items[0].ID != "1" {
			t.Fatalf("filter %q: %v", filter, ids(p))
		}
	}
}

func TestView_SortByTesseraNumericMissingLast(t *testing.T) {
	t.Parallel()

	records := []domain.Record{
		rec("a", "A", "A", "", "GMC-2025-10"),
		rec("b", "B", "B", "", ""),
		rec("c", "C", "C", "", "GMC-2025-2"),
	}

	p := View(records, domain.PartitionMembers, now, Query{Sort: SortByTessera}, 10)
	if got := ids(p); got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Fatalf("asc order=%v", got)
	}

	p = View(records, domain.PartitionMembers, now, Query{Sort: SortByTessera, Desc: true}, 10)
	if got := ids(p); got[0] != "a" || got[1] != "c" || got[2] != "b" {
		t.Fatalf("desc order=%v (missing tessera must stay last)", got)
	}
}

func TestView_SortByNameIsLastFirstCaseInsensitive(t *testing.T) {
	t.Parallel()

	records := []domain.Record{
		rec("1", "Bruno", "rossi", "", ""),
		rec("2", "Anna", "Rossi", "", ""),
		rec("3", "Zoe", "Bianchi", "", ""),
	}
	p := View(records, domain.PartitionMembers, now, Query{Sort: SortByName}, 10)
	if got := ids(p); got[0] != "3" || got[1] != "2" || got[2] != "1" {
		t.Fatalf("order=%v", got)
	}
}

func TestView_RawKeySort(t *testing.T) {
	t.Parallel()

	records := []domain.Record{
		rec("1", "Mario", "Rossi", "zz@example.com", ""),
		rec("2", "Anna", "Bianchi", "aa@example.com", ""),
	}
	p := View(records, domain.PartitionMembers, now, Query{Sort: "email"}, 10)
	if got := ids(p); got[0] != "2" {
		t.Fatalf("order=%v", got)
	}
	p = View(records, domain.PartitionMembers, now, Query{Sort: "email", Desc: true}, 10)
	if got := ids(p); got[0] != "1" {
		t.Fatalf("desc order=%v", got)
	}
}

func TestView_PaginationClamps(t *testing.T) {
	t.Parallel()

	records := make([]domain.Record, 0, 5)
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		records = append(records, rec(id, "N"+id, "C"+id, "", ""))
	}

	p := View(records, domain.PartitionMembers, now, Query{Page: 0}, 2)
	if p.Page != 1 || p.PageCount != 3 || len(p.Items) != 2 || p.Total != 5 {
		t.Fatalf("page=%+v", p)
	}
	p = View(records, domain.PartitionMembers, now, Query{Page: 99}, 2)
	if p.Page != 3 || len(p.Items) != 1 {
		t.Fatalf("page=%+v", p)
	}
	p = View(nil, domain.PartitionMembers, now, Query{Page: 2}, 2)
	if p.Page != 1 || p.PageCount != 1 || p.Total != 0 {
		t.Fatalf("empty page=%+v", p)
	}
}

func TestView_DerivesStatus(t *testing.T) {
	t.Parallel()

	exp := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	r := rec("1", "Mario", "Rossi", "", "GMC-2024-1")
	r.ExpirationDate = &exp

	p := View([]domain.Record{r}, domain.PartitionMembers, now, Query{}, 10)
	if p.Items[0].Status != domain.StatusExpired {
		t.Fatalf("status=%s", p.Items[0].Status)
	}
}
