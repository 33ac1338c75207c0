package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	memclock "github.com/gmc-club/membership-api/internal/adapters/memory/clock"
	memrecordstore "github.com/gmc-club/membership-api/internal/adapters/memory/recordstore"
	"github.com/gmc-club/membership-api/internal/domain"
	recordstoreport "github.com/gmc-club/membership-api/internal/ports/out/recordstore"
)

var testNow = time.Date(2025, time.June, 15, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memrecordstore.Store, *memclock.ManualClock) {
	t.Helper()
	store := memrecordstore.NewStore()
	clk := memclock.NewManualClock(testNow)
	svc := NewService(store, clk, Config{
		TesseraPrefix: "GMC",
		AdultFee:      decimal.RequireFromString("30.00"),
	})
	return svc, store, clk
}

func submitAdult(t *testing.T, svc *Service, first, last string) RecordView {
	t.Helper()
	v, err := svc.SubmitApplication(context.Background(), ApplicationInput{
		FirstName:      first,
		LastName:       last,
		BirthDate:      time.Date(1990, time.May, 2, 0, 0, 0, 0, time.UTC),
		Email:          strings.ToLower(first) + "@example.com",
		PrivacyConsent: true,
	})
	if err != nil {
		t.Fatalf("SubmitApplication: %v", err)
	}
	return v
}

func seedMember(t *testing.T, store *memrecordstore.Store, rec domain.Record) {
	t.Helper()
	var b recordstoreport.Batch
	b.Put(domain.PartitionMembers, rec)
	if err := store.Apply(context.Background(), b); err != nil {
		t.Fatalf("seed member: %v", err)
	}
}

func TestSubmitApplication_CreatesPendingRecord(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	v := submitAdult(t, svc, "  Mario ", " Rossi  ")

	if v.Partition != domain.PartitionApplications || v.Status != domain.StatusPending {
		t.Fatalf("partition=%s status=%s", v.Partition, v.Status)
	}
	if v.FirstName != "Mario" || v.LastName != "Rossi" {
		t.Fatalf("names not normalized: %q %q", v.FirstName, v.LastName)
	}
	if v.RequestDate == nil || !v.RequestDate.Equal(testNow) {
		t.Fatalf("requestDate=%v", v.RequestDate)
	}
	if v.Tessera != "" {
		t.Fatalf("application must not carry a tessera")
	}

	if _, err := store.Get(context.Background(), domain.PartitionApplications, v.ID); err != nil {
		t.Fatalf("record not stored: %v", err)
	}
}

func TestSubmitApplication_RequiresNamesAndBirthDate(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	_, err := svc.SubmitApplication(context.Background(), ApplicationInput{LastName: "Rossi", BirthDate: testNow})
	assertValidation(t, err)
	_, err = svc.SubmitApplication(context.Background(), ApplicationInput{FirstName: "Mario", LastName: "Rossi"})
	assertValidation(t, err)
}

func TestApprove_MovesRecordAndAllocatesTessera(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	v := submitAdult(t, svc, "Mario", "Rossi")

	// Pre-existing cards for 2025 leave a gap at 3.
	for i, n := range []int{1, 2, 4} {
		seedMember(t, store, domain.Record{
			ID:        domain.RecordID("seed-" + string(rune('a'+i))),
			FirstName: "Seed",
			LastName:  "Member",
			BirthDate: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
			Tessera:   domain.FormatTessera("GMC", "2025", n),
		})
	}

	got, err := svc.Approve(context.Background(), v.ID, ApproveInput{FeePaid: true})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.Tessera != "GMC-2025-3" {
		t.Fatalf("tessera=%q, want gap-filled GMC-2025-3", got.Tessera)
	}
	if got.Status != domain.StatusActive || got.Partition != domain.PartitionMembers {
		t.Fatalf("status=%s partition=%s", got.Status, got.Partition)
	}
	if got.JoinDate == nil || !got.JoinDate.Equal(testNow) {
		t.Fatalf("joinDate=%v", got.JoinDate)
	}
	if got.ExpirationDate == nil || !got.ExpirationDate.Equal(domain.YearEnd(2025)) {
		t.Fatalf("expirationDate=%v", got.ExpirationDate)
	}
	if !got.Fee.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("fee=%s, want adult default", got.Fee)
	}

	// Exactly zero documents in Applications, exactly one in Members.
	if _, err := store.Get(context.Background(), domain.PartitionApplications, v.ID); !errors.Is(err, recordstoreport.ErrNotFound) {
		t.Fatalf("record still in applications: %v", err)
	}
	if _, err := store.Get(context.Background(), domain.PartitionMembers, v.ID); err != nil {
		t.Fatalf("record missing from members: %v", err)
	}
}

func TestApprove_FeeNotAcknowledged_NoWrite(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	v := submitAdult(t, svc, "Mario", "Rossi")

	_, err := svc.Approve(context.Background(), v.ID, ApproveInput{FeePaid: false})
	assertValidation(t, err)

	got, err := store.Get(context.Background(), domain.PartitionApplications, v.ID)
	if err != nil {
		t.Fatalf("record left applications: %v", err)
	}
	if got.Tessera != "" || got.JoinDate != nil {
		t.Fatalf("record was mutated: %+v", got)
	}
}

func TestApprove_MinorWithoutGuardian(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	v, err := svc.SubmitApplication(context.Background(), ApplicationInput{
		FirstName:      "Luca",
		LastName:       "Rossi",
		BirthDate:      time.Date(2015, time.March, 1, 0, 0, 0, 0, time.UTC),
		PrivacyConsent: true,
	})
	if err != nil {
		t.Fatalf("SubmitApplication: %v", err)
	}

	_, err = svc.Approve(context.Background(), v.ID, ApproveInput{FeePaid: true})
	assertValidation(t, err)

	// With a complete guardian the activation goes through, at the minor fee.
	_, err = svc.Update(context.Background(), domain.PartitionApplications, v.ID, UpdateInput{
		Guardian: Some(GuardianInput{FirstName: "Paola", LastName: "Rossi", BirthDate: time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC)}),
	})
	if err != nil {
		t.Fatalf("Update guardian: %v", err)
	}
	got, err := svc.Approve(context.Background(), v.ID, ApproveInput{FeePaid: true})
	if err != nil {
		t.Fatalf("Approve with guardian: %v", err)
	}
	if !got.Fee.IsZero() {
		t.Fatalf("fee=%s, want 0 for a minor", got.Fee)
	}
}

func TestApprove_RequiresPrivacyConsent(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	v, err := svc.SubmitApplication(context.Background(), ApplicationInput{
		FirstName: "Mario",
		LastName:  "Rossi",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SubmitApplication: %v", err)
	}
	_, err = svc.Approve(context.Background(), v.ID, ApproveInput{FeePaid: true})
	assertValidation(t, err)
}

func TestApprove_ExplicitTesseraConflict(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	v := submitAdult(t, svc, "Mario", "Rossi")
	seedMember(t, store, domain.Record{
		ID:        "seed-1",
		FirstName: "Anna",
		LastName:  "Bianchi",
		BirthDate: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		Tessera:   "GMC-2025-5",
	})

	five := 5
	_, err := svc.Approve(context.Background(), v.ID, ApproveInput{FeePaid: true, TesseraNumber: &five})
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != 409 || ae.Code != "TESSERA_TAKEN" {
		t.Fatalf("err=%v, want TESSERA_TAKEN 409", err)
	}
}

func TestReject_RemovesRecordEverywhere(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	v := submitAdult(t, svc, "Mario", "Rossi")

	if err := svc.Reject(context.Background(), v.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	for _, p := range []domain.Partition{domain.PartitionApplications, domain.PartitionMembers} {
		if _, err := store.Get(context.Background(), p, v.ID); !errors.Is(err, recordstoreport.ErrNotFound) {
			t.Fatalf("record survived rejection in %s: %v", p, err)
		}
	}

	if err := svc.Reject(context.Background(), v.ID); !isNotFound(err) {
		t.Fatalf("second reject err=%v, want 404", err)
	}
}

func TestRenew_ExpiredMember(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	exp := domain.YearEnd(2024)
	seedMember(t, store, domain.Record{
		ID:             "m-1",
		FirstName:      "Mario",
		LastName:       "Rossi",
		BirthDate:      time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		MembershipYear: "2024",
		Tessera:        "GMC-2024-7",
		Fee:            decimal.RequireFromString("25.00"),
		ExpirationDate: &exp,
		Notes:          "prior note",
	})
	seedMember(t, store, domain.Record{
		ID:        "m-2",
		FirstName: "Anna",
		LastName:  "Bianchi",
		BirthDate: time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC),
		Tessera:   "GMC-2025-1",
	})

	before, _ := svc.Get(context.Background(), domain.PartitionMembers, "m-1")
	if before.Status != domain.StatusExpired {
		t.Fatalf("precondition: status=%s, want expired", before.Status)
	}

	got, err := svc.Renew(context.Background(), "m-1", RenewInput{Year: "2025", FeePaid: true})
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if got.MembershipYear != "2025" {
		t.Fatalf("membershipYear=%q", got.MembershipYear)
	}
	if got.ExpirationDate == nil || !got.ExpirationDate.Equal(domain.YearEnd(2025)) {
		t.Fatalf("expirationDate=%v", got.ExpirationDate)
	}
	if got.Tessera != "GMC-2025-2" {
		t.Fatalf("tessera=%q, want next free 2025 number", got.Tessera)
	}
	if got.Status != domain.StatusActive {
		t.Fatalf("status=%s", got.Status)
	}
	if got.RenewalDate == nil || !got.RenewalDate.Equal(testNow) {
		t.Fatalf("renewalDate=%v", got.RenewalDate)
	}
	// Renewal note summarizing the prior card/year/fee is prepended.
	if !strings.Contains(got.Notes, "GMC-2024-7") || !strings.Contains(got.Notes, "2024") || !strings.Contains(got.Notes, "25.00") {
		t.Fatalf("notes=%q", got.Notes)
	}
	if !strings.HasSuffix(got.Notes, "prior note") {
		t.Fatalf("prior notes lost: %q", got.Notes)
	}
}

func TestRenew_FeeNotAcknowledged(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	seedMember(t, store, domain.Record{
		ID:        "m-1",
		FirstName: "Mario",
		LastName:  "Rossi",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Tessera:   "GMC-2024-1",
	})

	_, err := svc.Renew(context.Background(), "m-1", RenewInput{Year: "2025", FeePaid: false})
	assertValidation(t, err)

	got, _ := store.Get(context.Background(), domain.PartitionMembers, "m-1")
	if got.Tessera != "GMC-2024-1" || got.RenewalDate != nil {
		t.Fatalf("record mutated: %+v", got)
	}
}

func TestUpdate_DemoteToPendingStripsMemberFields(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	exp := domain.YearEnd(2025)
	join := testNow.AddDate(-1, 0, 0)
	seedMember(t, store, domain.Record{
		ID:             "m-1",
		FirstName:      "Mario",
		LastName:       "Rossi",
		BirthDate:      time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		MembershipYear: "2025",
		Tessera:        "GMC-2025-1",
		Fee:            decimal.RequireFromString("30.00"),
		JoinDate:       &join,
		ExpirationDate: &exp,
	})

	got, err := svc.Update(context.Background(), domain.PartitionMembers, "m-1", UpdateInput{
		Status: Some(domain.StatusPending),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Partition != domain.PartitionApplications || got.Status != domain.StatusPending {
		t.Fatalf("partition=%s status=%s", got.Partition, got.Status)
	}
	if got.Tessera != "" || !got.Fee.IsZero() || got.JoinDate != nil || got.ExpirationDate != nil || got.RenewalDate != nil {
		t.Fatalf("member-only fields not stripped: %+v", got.Record)
	}
	if got.RequestDate == nil {
		t.Fatalf("requestDate must be set on demotion")
	}

	if _, err := store.Get(context.Background(), domain.PartitionMembers, "m-1"); !errors.Is(err, recordstoreport.ErrNotFound) {
		t.Fatalf("record still in members: %v", err)
	}
}

func TestUpdate_DirectPromotionFromEditForm(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	v := submitAdult(t, svc, "Mario", "Rossi")

	// Promotion without the fee acknowledgment is refused.
	_, err := svc.Update(context.Background(), domain.PartitionApplications, v.ID, UpdateInput{
		Status: Some(domain.StatusActive),
	})
	assertValidation(t, err)

	got, err := svc.Update(context.Background(), domain.PartitionApplications, v.ID, UpdateInput{
		Status:  Some(domain.StatusActive),
		FeePaid: true,
	})
	if err != nil {
		t.Fatalf("Update promote: %v", err)
	}
	if got.Partition != domain.PartitionMembers || got.Status != domain.StatusActive {
		t.Fatalf("partition=%s status=%s", got.Partition, got.Status)
	}
	if got.Tessera != "GMC-2025-1" {
		t.Fatalf("tessera=%q", got.Tessera)
	}
	if _, err := store.Get(context.Background(), domain.PartitionApplications, v.ID); !errors.Is(err, recordstoreport.ErrNotFound) {
		t.Fatalf("record still in applications: %v", err)
	}
}

func TestUpdate_RejectedMarker(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	v := submitAdult(t, svc, "Mario", "Rossi")

	got, err := svc.Update(context.Background(), domain.PartitionApplications, v.ID, UpdateInput{
		Status: Some(domain.StatusRejected),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != domain.StatusRejected || got.Partition != domain.PartitionApplications {
		t.Fatalf("status=%s partition=%s", got.Status, got.Partition)
	}

	// Back to pending clears the marker in place.
	got, err = svc.Update(context.Background(), domain.PartitionApplications, v.ID, UpdateInput{
		Status: Some(domain.StatusPending),
	})
	if err != nil || got.Status != domain.StatusPending {
		t.Fatalf("got=%+v err=%v", got, err)
	}
}

func TestUpdate_FieldEditsOnly(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	v := submitAdult(t, svc, "Mario", "Rossi")

	got, err := svc.Update(context.Background(), domain.PartitionApplications, v.ID, UpdateInput{
		Email: Some("new@example.com"),
		Phone: Null[string](),
		Notes: Some("manual note"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Email != "new@example.com" || got.Phone != "" || got.Notes != "manual note" {
		t.Fatalf("got=%+v", got.Record)
	}
	if got.Partition != domain.PartitionApplications {
		t.Fatalf("partition changed without a status edit")
	}
}

func TestUpdate_CannotRejectAMember(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	seedMember(t, store, domain.Record{
		ID:        "m-1",
		FirstName: "Mario",
		LastName:  "Rossi",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Tessera:   "GMC-2025-1",
	})

	_, err := svc.Update(context.Background(), domain.PartitionMembers, "m-1", UpdateInput{
		Status: Some(domain.StatusRejected),
	})
	assertValidation(t, err)
}

func TestDelete_RemovesFromPartition(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	v := submitAdult(t, svc, "Mario", "Rossi")

	if err := svc.Delete(context.Background(), domain.PartitionApplications, v.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(context.Background(), domain.PartitionApplications, v.ID); !errors.Is(err, recordstoreport.ErrNotFound) {
		t.Fatalf("record survived deletion: %v", err)
	}
	if err := svc.Delete(context.Background(), domain.PartitionApplications, v.ID); !isNotFound(err) {
		t.Fatalf("second delete err=%v, want 404", err)
	}
}

func TestStatusFlipsWhenClockPassesExpiration(t *testing.T) {
	t.Parallel()

	svc, store, clk := newTestService(t)
	exp := domain.YearEnd(2025)
	seedMember(t, store, domain.Record{
		ID:             "m-1",
		FirstName:      "Mario",
		LastName:       "Rossi",
		BirthDate:      time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Tessera:        "GMC-2025-1",
		ExpirationDate: &exp,
	})

	got, _ := svc.Get(context.Background(), domain.PartitionMembers, "m-1")
	if got.Status != domain.StatusActive {
		t.Fatalf("status=%s, want active", got.Status)
	}

	clk.Set(time.Date(2026, time.January, 1, 0, 0, 1, 0, time.UTC))
	got, _ = svc.Get(context.Background(), domain.PartitionMembers, "m-1")
	if got.Status != domain.StatusExpired {
		t.Fatalf("status=%s, want expired", got.Status)
	}
}

func assertValidation(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != 422 || ae.Code != "VALIDATION_ERROR" {
		t.Fatalf("err=%v, want VALIDATION_ERROR 422", err)
	}
}

func isNotFound(err error) bool {
	ae := (*Error)(nil)
	return errors.As(err, &ae) && ae.Status == 404
}
