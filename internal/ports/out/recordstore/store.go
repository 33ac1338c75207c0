package recordstore

import (
	"context"

	"github.com/gmc-club/membership-api/internal/domain"
)

// MaxBatchOps is the largest number of operations a single atomic batch may
// carry. It mirrors the batch cap of document stores this interface abstracts;
// callers committing more writes (bulk import) must chunk.
const MaxBatchOps = 500

type OpKind int

const (
	OpPut OpKind = iota + 1
	OpDelete
)

// Op is one write in a batch. Put replaces the whole document at
// (Partition, Record.ID); Delete removes it and is a no-op when absent, which
// lets a move batch clear both partitions without a prior existence check.
type Op struct {
	Kind      OpKind
	Partition domain.Partition
	ID        domain.RecordID
	Record    domain.Record
}

// Batch is an ordered write-set applied all-or-nothing.
type Batch struct {
	Ops []Op
}

func (b *Batch) Put(p domain.Partition, r domain.Record) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpPut, Partition: p, ID: r.ID, Record: r})
	return b
}

func (b *Batch) Delete(p domain.Partition, id domain.RecordID) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpDelete, Partition: p, ID: id})
	return b
}

// Store provides access to the two record partitions.
//
// Apply is the sole write primitive and is atomic: either every op in the batch
// takes effect or none does. There is no cross-batch coordination — two
// concurrent batches touching the same record are resolved by whichever commits
// last, with no version checking.
//
// List returns records ordered by (lower lastName, lower firstName, ID)
// ascending to keep behavior deterministic across implementations.
type Store interface {
	Get(ctx context.Context, p domain.Partition, id domain.RecordID) (domain.Record, error)
	List(ctx context.Context, p domain.Partition) ([]domain.Record, error)
	Apply(ctx context.Context, b Batch) error
}
