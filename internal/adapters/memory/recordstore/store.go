package recordstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gmc-club/membership-api/internal/domain"
	"github.com/gmc-club/membership-api/internal/ports/out/recordstore"
)

// Store is an in-memory implementation of recordstore.Store.
// It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	partitions map[domain.Partition]map[domain.RecordID]domain.Record
}

func NewStore() *Store {
	return &Store{
		partitions: map[domain.Partition]map[domain.RecordID]domain.Record{
			domain.PartitionMembers:      {},
			domain.PartitionApplications: {},
		},
	}
}

func (s *Store) Get(ctx context.Context, p domain.Partition, id domain.RecordID) (domain.Record, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.partitions[p]
	if !ok {
		return domain.Record{}, recordstore.ErrNotFound
	}
	r, ok := docs[id]
	if !ok {
		return domain.Record{}, recordstore.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) List(ctx context.Context, p domain.Partition) ([]domain.Record, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.partitions[p]
	out := make([]domain.Record, 0, len(docs))
	for _, r := range docs {
		out = append(out, r.Clone())
	}
	sortRecordsByName(out)
	return out, nil
}

// Apply validates the whole batch before touching any partition, so a rejected
// batch leaves the store exactly as it was.
func (s *Store) Apply(ctx context.Context, b recordstore.Batch) error {
	_ = ctx
	if len(b.Ops) > recordstore.MaxBatchOps {
		return recordstore.ErrBatchTooLarge
	}
	for _, op := range b.Ops {
		if err := validateOp(op); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range b.Ops {
		switch op.Kind {
		case recordstore.OpPut:
			s.partitions[op.Partition][op.ID] = op.Record.Clone()
		case recordstore.OpDelete:
			delete(s.partitions[op.Partition], op.ID)
		}
	}
	return nil
}

func validateOp(op recordstore.Op) error {
	if op.ID == "" {
		return recordstore.ErrInvalidOp
	}
	if op.Partition != domain.PartitionMembers && op.Partition != domain.PartitionApplications {
		return recordstore.ErrInvalidOp
	}
	switch op.Kind {
	case recordstore.OpPut:
		if op.Record.ID != op.ID {
			return recordstore.ErrInvalidOp
		}
	case recordstore.OpDelete:
	default:
		return recordstore.ErrInvalidOp
	}
	return nil
}

func sortRecordsByName(rs []domain.Record) {
	sort.Slice(rs, func(i, j int) bool {
		li := strings.ToLower(rs[i].LastName)
		lj := strings.ToLower(rs[j].LastName)
		if li != lj {
			return li < lj
		}
		fi := strings.ToLower(rs[i].FirstName)
		fj := strings.ToLower(rs[j].FirstName)
		if fi != fj {
			return fi < fj
		}
		return rs[i].ID < rs[j].ID
	})
}
