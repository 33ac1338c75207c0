package contracttest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gmc-club/membership-api/internal/domain"
	recordstoreport "github.com/gmc-club/membership-api/internal/ports/out/recordstore"
)

type CleanupFunc = func()

type RecordStoreFactory func(t *testing.T) (recordstoreport.Store, CleanupFunc)

// RunRecordStore exercises the recordstore.Store contract against any
// implementation, in particular the atomicity of Apply.
func RunRecordStore(t *testing.T, newStore RecordStoreFactory) {
	t.Helper()
	ctx := context.Background()

	newRecord := func(first, last string) domain.Record {
		return domain.Record{
			ID:        domain.RecordID(uuid.NewString()),
			FirstName: first,
			LastName:  last,
			BirthDate: time.Date(1990, time.May, 2, 0, 0, 0, 0, time.UTC),
			Fee:       decimal.RequireFromString("30.00"),
		}
	}

	t.Run("PutThenGet", func(t *testing.T) {
		store, cleanup := newStore(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		r := newRecord("Mario", "Rossi")
		r.Tessera = "GMC-2025-1"
		r.Roles = []domain.RoleTag{domain.RoleVolunteer}
		exp := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
		r.ExpirationDate = &exp
		var b recordstoreport.Batch
		b.Put(domain.PartitionMembers, r)
		if err := store.Apply(ctx, b); err != nil {
			t.Fatalf("Apply: %v", err)
		}

		got, err := store.Get(ctx, domain.PartitionMembers, r.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Tessera != "GMC-2025-1" || got.LastName != "Rossi" || !got.Fee.Equal(r.Fee) {
			t.Fatalf("unexpected record: %+v", got)
		}
		if got.ExpirationDate == nil || !got.ExpirationDate.Equal(exp) {
			t.Fatalf("expirationDate=%v", got.ExpirationDate)
		}

		if _, err := store.Get(ctx, domain.PartitionApplications, r.ID); !errors.Is(err, recordstoreport.ErrNotFound) {
			t.Fatalf("expected ErrNotFound in other partition, got %v", err)
		}
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		store, cleanup := newStore(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		r := newRecord("Mario", "Rossi")
		var b recordstoreport.Batch
		b.Put(domain.PartitionApplications, r)
		if err := store.Apply(ctx, b); err != nil {
			t.Fatalf("Apply: %v", err)
		}

		r.Email = "mario.rossi@example.com"
		var b2 recordstoreport.Batch
		b2.Put(domain.PartitionApplications, r)
		if err := store.Apply(ctx, b2); err != nil {
			t.Fatalf("Apply overwrite: %v", err)
		}
		got, err := store.Get(ctx, domain.PartitionApplications, r.ID)
		if err != nil || got.Email != "mario.rossi@example.com" {
			t.Fatalf("got=%+v err=%v", got, err)
		}
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		store, cleanup := newStore(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		var b recordstoreport.Batch
		b.Delete(domain.PartitionMembers, domain.RecordID(uuid.NewString()))
		if err := store.Apply(ctx, b); err != nil {
			t.Fatalf("deleting an absent record must succeed, got %v", err)
		}
	})

	t.Run("AtomicMoveAcrossPartitions", func(t *testing.T) {
		store, cleanup := newStore(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		r := newRecord("Anna", "Bianchi")
		var seed recordstoreport.Batch
		seed.Put(domain.PartitionApplications, r)
		if err := store.Apply(ctx, seed); err != nil {
			t.Fatalf("seed: %v", err)
		}

		moved := r.Clone()
		moved.Tessera = "GMC-2025-1"
		var move recordstoreport.Batch
		move.Delete(domain.PartitionApplications, r.ID)
		move.Put(domain.PartitionMembers, moved)
		if err := store.Apply(ctx, move); err != nil {
			t.Fatalf("move: %v", err)
		}

		if _, err := store.Get(ctx, domain.PartitionApplications, r.ID); !errors.Is(err, recordstoreport.ErrNotFound) {
			t.Fatalf("record still visible in applications: %v", err)
		}
		got, err := store.Get(ctx, domain.PartitionMembers, r.ID)
		if err != nil || got.Tessera != "GMC-2025-1" {
			t.Fatalf("got=%+v err=%v", got, err)
		}
	})

	t.Run("InvalidOpLeavesNoTrace", func(t *testing.T) {
		store, cleanup := newStore(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		good := newRecord("Carla", "Verdi")
		var b recordstoreport.Batch
		b.Put(domain.PartitionMembers, good)
		b.Ops = append(b.Ops, recordstoreport.Op{Kind: recordstoreport.OpPut, Partition: domain.PartitionMembers})
		if err := store.Apply(ctx, b); err == nil {
			t.Fatalf("expected error for op with empty ID")
		}
		if _, err := store.Get(ctx, domain.PartitionMembers, good.ID); !errors.Is(err, recordstoreport.ErrNotFound) {
			t.Fatalf("partial write observed: %v", err)
		}
	})

	t.Run("BatchTooLarge", func(t *testing.T) {
		store, cleanup := newStore(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		var b recordstoreport.Batch
		for i := 0; i < recordstoreport.MaxBatchOps+1; i++ {
			b.Delete(domain.PartitionMembers, domain.RecordID(fmt.Sprintf("id-%d", i)))
		}
		if err := store.Apply(ctx, b); !errors.Is(err, recordstoreport.ErrBatchTooLarge) {
			t.Fatalf("err=%v, want ErrBatchTooLarge", err)
		}
	})

	t.Run("ListOrdering", func(t *testing.T) {
		store, cleanup := newStore(t)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		var b recordstoreport.Batch
		b.Put(domain.PartitionMembers, newRecord("Bruno", "Rossi"))
		b.Put(domain.PartitionMembers, newRecord("Anna", "rossi"))
		b.Put(domain.PartitionMembers, newRecord("Carla", "Bianchi"))
		if err := store.Apply(ctx, b); err != nil {
			t.Fatalf("Apply: %v", err)
		}

		got, err := store.List(ctx, domain.PartitionMembers)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("len=%d", len(got))
		}
		if got[0].LastName != "Bianchi" || got[1].FirstName != "Anna" || got[2].FirstName != "Bruno" {
			t.Fatalf("order: %s %s, %s %s, %s %s",
				got[0].FirstName, got[0].LastName, got[1].FirstName, got[1].LastName, got[2].FirstName, got[2].LastName)
		}
	})
}
