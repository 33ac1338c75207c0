package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gmc-club/membership-api/internal/domain"
	recordstoreport "github.com/gmc-club/membership-api/internal/ports/out/recordstore"
)

// Store is a Postgres implementation of recordstore.Store. The two partitions
// map to the `members` and `applications` tables, which share one schema; a
// batch executes inside a single transaction, which is what makes the
// cross-partition move atomic.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func tableFor(p domain.Partition) (string, error) {
	switch p {
	case domain.PartitionMembers:
		return "members", nil
	case domain.PartitionApplications:
		return "applications", nil
	}
	return "", recordstoreport.ErrInvalidOp
}

const recordColumns = `
	id,
	first_name,
	last_name,
	gender,
	birth_date,
	birth_place,
	fiscal_code,
	email,
	phone,
	address,
	city,
	postal_code,
	province,
	privacy_consent,
	comms_consent,
	guardian_first_name,
	guardian_last_name,
	guardian_birth_date,
	membership_year,
	tessera,
	fee::text,
	roles,
	notes,
	request_date,
	join_date,
	renewal_date,
	expiration_date,
	rejected
`

func (s *Store) Get(ctx context.Context, p domain.Partition, id domain.RecordID) (domain.Record, error) {
	if s.pool == nil {
		return domain.Record{}, errors.New("nil postgres pool")
	}
	table, err := tableFor(p)
	if err != nil {
		return domain.Record{}, err
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Record{}, recordstoreport.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM `+table+` WHERE id = $1`, uid)
	return scanRecord(row)
}

func (s *Store) List(ctx context.Context, p domain.Partition) ([]domain.Record, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	table, err := tableFor(p)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM `+table+`
		ORDER BY lower(last_name) ASC, lower(first_name) ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Apply(ctx context.Context, b recordstoreport.Batch) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	if len(b.Ops) > recordstoreport.MaxBatchOps {
		return recordstoreport.ErrBatchTooLarge
	}
	// Validate before opening the transaction so malformed batches never reach
	// the store.
	type plannedOp struct {
		op    recordstoreport.Op
		table string
		id    uuid.UUID
	}
	planned := make([]plannedOp, 0, len(b.Ops))
	for _, op := range b.Ops {
		table, err := tableFor(op.Partition)
		if err != nil {
			return err
		}
		if op.ID == "" {
			return recordstoreport.ErrInvalidOp
		}
		uid, err := uuid.Parse(string(op.ID))
		if err != nil {
			return fmt.Errorf("%w: bad record id %q", recordstoreport.ErrInvalidOp, op.ID)
		}
		switch op.Kind {
		case recordstoreport.OpPut:
			if op.Record.ID != op.ID {
				return recordstoreport.ErrInvalidOp
			}
		case recordstoreport.OpDelete:
		default:
			return recordstoreport.ErrInvalidOp
		}
		planned = append(planned, plannedOp{op: op, table: table, id: uid})
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, p := range planned {
			switch p.op.Kind {
			case recordstoreport.OpPut:
				if err := upsertRecord(ctx, tx, p.table, p.id, p.op.Record); err != nil {
					return err
				}
			case recordstoreport.OpDelete:
				if _, err := tx.Exec(ctx, `DELETE FROM `+p.table+` WHERE id = $1`, p.id); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func upsertRecord(ctx context.Context, tx pgx.Tx, table string, id uuid.UUID, r domain.Record) error {
	var gFirst, gLast *string
	var gBirth *time.Time
	if r.Guardian != nil {
		gFirst = &r.Guardian.FirstName
		gLast = &r.Guardian.LastName
		if !r.Guardian.BirthDate.IsZero() {
			b := r.Guardian.BirthDate.UTC()
			gBirth = &b
		}
	}
	roles := make([]string, 0, len(r.Roles))
	for _, t := range r.Roles {
		roles = append(roles, string(t))
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO `+table+` (
			id, first_name, last_name, gender, birth_date, birth_place,
			fiscal_code, email, phone, address, city, postal_code, province,
			privacy_consent, comms_consent,
			guardian_first_name, guardian_last_name, guardian_birth_date,
			membership_year, tessera, fee, roles, notes,
			request_date, join_date, renewal_date, expiration_date, rejected
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23,
			$24, $25, $26, $27, $28
		)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			gender = EXCLUDED.gender,
			birth_date = EXCLUDED.birth_date,
			birth_place = EXCLUDED.birth_place,
			fiscal_code = EXCLUDED.fiscal_code,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			postal_code = EXCLUDED.postal_code,
			province = EXCLUDED.province,
			privacy_consent = EXCLUDED.privacy_consent,
			comms_consent = EXCLUDED.comms_consent,
			guardian_first_name = EXCLUDED.guardian_first_name,
			guardian_last_name = EXCLUDED.guardian_last_name,
			guardian_birth_date = EXCLUDED.guardian_birth_date,
			membership_year = EXCLUDED.membership_year,
			tessera = EXCLUDED.tessera,
			fee = EXCLUDED.fee,
			roles = EXCLUDED.roles,
			notes = EXCLUDED.notes,
			request_date = EXCLUDED.request_date,
			join_date = EXCLUDED.join_date,
			renewal_date = EXCLUDED.renewal_date,
			expiration_date = EXCLUDED.expiration_date,
			rejected = EXCLUDED.rejected
	`,
		id,
		r.FirstName,
		r.LastName,
		r.Gender,
		r.BirthDate.UTC(),
		r.BirthPlace,
		r.FiscalCode,
		r.Email,
		r.Phone,
		r.Address,
		r.City,
		r.PostalCode,
		r.Province,
		r.PrivacyConsent,
		r.CommsConsent,
		gFirst,
		gLast,
		gBirth,
		r.MembershipYear,
		r.Tessera,
		r.Fee.String(),
		roles,
		r.Notes,
		utcPtr(r.RequestDate),
		utcPtr(r.JoinDate),
		utcPtr(r.RenewalDate),
		utcPtr(r.ExpirationDate),
		r.Rejected,
	)
	return err
}

func scanRecord(row interface {
	Scan(dest ...any) error
}) (domain.Record, error) {
	var (
		id         uuid.UUID
		feeText    string
		gFirst     *string
		gLast      *string
		gBirth     *time.Time
		roles      []string
		birthDate  time.Time
		reqDate    *time.Time
		joinDate   *time.Time
		renDate    *time.Time
		expDate    *time.Time
		r          domain.Record
	)
	if err := row.Scan(
		&id,
		&r.FirstName,
		&r.LastName,
		&r.Gender,
		&birthDate,
		&r.BirthPlace,
		&r.FiscalCode,
		&r.Email,
		&r.Phone,
		&r.Address,
		&r.City,
		&r.PostalCode,
		&r.Province,
		&r.PrivacyConsent,
		&r.CommsConsent,
		&gFirst,
		&gLast,
		&gBirth,
		&r.MembershipYear,
		&r.Tessera,
		&feeText,
		&roles,
		&r.Notes,
		&reqDate,
		&joinDate,
		&renDate,
		&expDate,
		&r.Rejected,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, recordstoreport.ErrNotFound
		}
		return domain.Record{}, err
	}

	r.ID = domain.RecordID(id.String())
	r.BirthDate = birthDate.UTC()
	fee, err := decimal.NewFromString(feeText)
	if err != nil {
		return domain.Record{}, fmt.Errorf("bad fee %q: %w", feeText, err)
	}
	r.Fee = fee
	if len(roles) > 0 {
		r.Roles = make([]domain.RoleTag, 0, len(roles))
		for _, t := range roles {
			r.Roles = append(r.Roles, domain.RoleTag(t))
		}
	}
	if (gFirst != nil && *gFirst != "") || (gLast != nil && *gLast != "") || gBirth != nil {
		g := &domain.Guardian{}
		if gFirst != nil {
			g.FirstName = *gFirst
		}
		if gLast != nil {
			g.LastName = *gLast
		}
		if gBirth != nil {
			g.BirthDate = gBirth.UTC()
		}
		r.Guardian = g
	}
	r.RequestDate = utcPtr(reqDate)
	r.JoinDate = utcPtr(joinDate)
	r.RenewalDate = utcPtr(renDate)
	r.ExpirationDate = utcPtr(expDate)
	return r, nil
}

func utcPtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := p.UTC()
	return &v
}
