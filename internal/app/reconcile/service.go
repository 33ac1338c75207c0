package reconcile

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmc-club/membership-api/internal/domain"
	clockport "github.com/gmc-club/membership-api/internal/ports/out/clock"
	"github.com/gmc-club/membership-api/internal/ports/out/recordstore"
)

// Service runs bulk imports against the store.
type Service struct {
	store  recordstore.Store
	clk    clockport.Clock
	log    *zap.Logger
	prefix string

	newRecordID func() domain.RecordID
}

func NewService(store recordstore.Store, clk clockport.Clock, log *zap.Logger, tesseraPrefix string) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:  store,
		clk:    clk,
		log:    log,
		prefix: tesseraPrefix,
		newRecordID: func() domain.RecordID {
			return domain.RecordID(uuid.NewString())
		},
	}
}

// Import reconciles the rows against both partitions and commits the resulting
// write-set. The commit is best-effort across the whole run: the write-set is
// chunked to the store's batch limit and each chunk is atomic on its own, so a
// failing chunk is reported through Summary.Failed without aborting the rest.
func (s *Service) Import(ctx context.Context, rows []Row) (Summary, error) {
	members, err := s.store.List(ctx, domain.PartitionMembers)
	if err != nil {
		return Summary{}, err
	}
	applications, err := s.store.List(ctx, domain.PartitionApplications)
	if err != nil {
		return Summary{}, err
	}

	batch, sum := Reconcile(rows, members, applications, s.prefix, s.newRecordID, s.clk.Now())

	for start := 0; start < len(batch.Ops); start += recordstore.MaxBatchOps {
		end := start + recordstore.MaxBatchOps
		if end > len(batch.Ops) {
			end = len(batch.Ops)
		}
		chunk := recordstore.Batch{Ops: batch.Ops[start:end]}
		if err := s.store.Apply(ctx, chunk); err != nil {
			sum.Failed += len(chunk.Ops)
			s.log.Warn("import chunk rejected by store",
				zap.Int("ops", len(chunk.Ops)),
				zap.Error(err))
		}
	}
	return sum, nil
}
