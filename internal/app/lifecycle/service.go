package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gmc-club/membership-api/internal/domain"
	clockport "github.com/gmc-club/membership-api/internal/ports/out/clock"
	"github.com/gmc-club/membership-api/internal/ports/out/recordstore"
)

// Config carries the lifecycle policy knobs.
type Config struct {
	// TesseraPrefix is the literal prefix of card identifiers ("GMC-2025-3").
	TesseraPrefix string
	// AdultFee is the default membership fee for adults; minors default to 0.
	AdultFee decimal.Decimal
}

// Service executes lifecycle transitions. Every transition is realized as one
// atomic store batch; a transition that spans partitions is always one delete
// plus one put keyed by the same record id, so a reader never observes the
// record in both partitions nor in neither. Concurrent transitions on the same
// record are not serialized here: the later-committed batch wins.
type Service struct {
	store recordstore.Store
	clk   clockport.Clock
	cfg   Config

	newRecordID func() domain.RecordID
}

func NewService(store recordstore.Store, clk clockport.Clock, cfg Config) *Service {
	return &Service{
		store: store,
		clk:   clk,
		cfg:   cfg,
		newRecordID: func() domain.RecordID {
			return domain.RecordID(uuid.NewString())
		},
	}
}

func (s *Service) Get(ctx context.Context, p domain.Partition, id domain.RecordID) (RecordView, error) {
	rec, err := s.store.Get(ctx, p, id)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return RecordView{}, notFoundError()
		}
		return RecordView{}, err
	}
	return s.view(rec, p), nil
}

func (s *Service) List(ctx context.Context, p domain.Partition) ([]RecordView, error) {
	recs, err := s.store.List(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]RecordView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.view(rec, p))
	}
	return out, nil
}

// SubmitApplication creates a new pending record in the Applications partition.
func (s *Service) SubmitApplication(ctx context.Context, in ApplicationInput) (RecordView, error) {
	firstName := domain.NormalizeHumanName(in.FirstName)
	lastName := domain.NormalizeHumanName(in.LastName)
	if firstName == "" {
		return RecordView{}, validationError("invalid firstName", map[string]any{"firstName": "must be non-empty"})
	}
	if lastName == "" {
		return RecordView{}, validationError("invalid lastName", map[string]any{"lastName": "must be non-empty"})
	}
	if in.BirthDate.IsZero() {
		return RecordView{}, validationError("invalid birthDate", map[string]any{"birthDate": "must be set"})
	}

	now := s.clk.Now()
	rec := domain.Record{
		ID:             s.newRecordID(),
		FirstName:      firstName,
		LastName:       lastName,
		Gender:         in.Gender,
		BirthDate:      in.BirthDate,
		BirthPlace:     in.BirthPlace,
		FiscalCode:     domain.NormalizeFiscalCode(in.FiscalCode),
		Email:          in.Email,
		Phone:          in.Phone,
		Address:        in.Address,
		City:           in.City,
		PostalCode:     in.PostalCode,
		Province:       in.Province,
		PrivacyConsent: in.PrivacyConsent,
		CommsConsent:   in.CommsConsent,
		Guardian:       guardianFromInput(in.Guardian),
		Notes:          in.Notes,
		RequestDate:    &now,
	}

	var b recordstore.Batch
	b.Put(domain.PartitionApplications, rec)
	if err := s.store.Apply(ctx, b); err != nil {
		return RecordView{}, err
	}
	return s.view(rec, domain.PartitionApplications), nil
}

// Approve moves a pending application into the Members partition, assigning a
// card identifier and stamping join and expiration dates. Notes carry over.
func (s *Service) Approve(ctx context.Context, id domain.RecordID, in ApproveInput) (RecordView, error) {
	rec, err := s.store.Get(ctx, domain.PartitionApplications, id)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return RecordView{}, notFoundError()
		}
		return RecordView{}, err
	}
	return s.activate(ctx, rec, in)
}

// Reject permanently deletes a pending application. There is no rejected-state
// store: reject means removal. The batch clears both partitions so a record
// mid-move can never survive a rejection.
func (s *Service) Reject(ctx context.Context, id domain.RecordID) error {
	if _, err := s.store.Get(ctx, domain.PartitionApplications, id); err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return notFoundError()
		}
		return err
	}
	var b recordstore.Batch
	b.Delete(domain.PartitionApplications, id)
	b.Delete(domain.PartitionMembers, id)
	return s.store.Apply(ctx, b)
}

// Renew re-activates a Members-partition record (active or expired) for the
// target year: new card identifier, Dec 31 expiration, renewal date stamped,
// and a note summarizing the prior card, year and fee prepended.
func (s *Service) Renew(ctx context.Context, id domain.RecordID, in RenewInput) (RecordView, error) {
	rec, err := s.store.Get(ctx, domain.PartitionMembers, id)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return RecordView{}, notFoundError()
		}
		return RecordView{}, err
	}
	if !in.FeePaid {
		return RecordView{}, validationError("fee payment must be acknowledged", map[string]any{"feePaid": "must be true"})
	}
	yearNum, err := parseYear(in.Year)
	if err != nil {
		return RecordView{}, validationError("invalid year", map[string]any{"year": "must be a four-digit year"})
	}
	if err := validateRoles(in.Roles); err != nil {
		return RecordView{}, err
	}
	now := s.clk.Now()
	fee, err := s.resolveFee(in.Fee, rec, now)
	if err != nil {
		return RecordView{}, err
	}

	members, err := s.store.List(ctx, domain.PartitionMembers)
	if err != nil {
		return RecordView{}, err
	}
	n, err := s.allocateTessera(members, in.Year, nil)
	if err != nil {
		return RecordView{}, err
	}

	note := fmt.Sprintf("Rinnovo %s del %s: tessera precedente %s, anno %s, quota %s",
		in.Year, now.Format("02/01/2006"), orDash(rec.Tessera), orDash(rec.MembershipYear), rec.Fee.StringFixed(2))

	rec.RenewalDate = &now
	rec.MembershipYear = in.Year
	exp := domain.YearEnd(yearNum)
	rec.ExpirationDate = &exp
	rec.Tessera = domain.FormatTessera(s.cfg.TesseraPrefix, in.Year, n)
	rec.Fee = fee
	if in.Roles != nil {
		rec.Roles = in.Roles
	}
	rec.Notes = prependNote(rec.Notes, note)

	var b recordstore.Batch
	b.Put(domain.PartitionMembers, rec)
	if err := s.store.Apply(ctx, b); err != nil {
		return RecordView{}, err
	}
	return s.view(rec, domain.PartitionMembers), nil
}

// Update applies an edit-form patch and, when the patch sets a status, executes
// the implied transition (see UpdateInput).
func (s *Service) Update(ctx context.Context, p domain.Partition, id domain.RecordID, in UpdateInput) (RecordView, error) {
	rec, err := s.store.Get(ctx, p, id)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return RecordView{}, notFoundError()
		}
		return RecordView{}, err
	}

	rec, err = applyPatch(rec, in)
	if err != nil {
		return RecordView{}, err
	}

	if !in.Status.IsSpecified() || in.Status.IsNull() {
		return s.putInPlace(ctx, p, rec)
	}

	switch in.Status.Value() {
	case domain.StatusPending:
		if p == domain.PartitionMembers {
			return s.demote(ctx, rec)
		}
		rec.Rejected = false
		return s.putInPlace(ctx, p, rec)

	case domain.StatusActive:
		if p == domain.PartitionApplications {
			return s.activate(ctx, rec, ApproveInput{
				TesseraNumber: optionalToPtr(in.TesseraNumber),
				Fee:           optionalToPtr(in.Fee),
				FeePaid:       in.FeePaid,
			})
		}
		// Already in Members: status is derived, only the field edits apply.
		return s.putInPlace(ctx, p, rec)

	case domain.StatusRejected:
		if p != domain.PartitionApplications {
			return RecordView{}, validationError("only applications can be marked rejected", map[string]any{"status": "rejected"})
		}
		rec.Rejected = true
		return s.putInPlace(ctx, p, rec)

	default:
		return RecordView{}, validationError("status cannot be set directly", map[string]any{"status": string(in.Status.Value())})
	}
}

// Delete permanently removes a record from its partition. No tombstone is kept.
func (s *Service) Delete(ctx context.Context, p domain.Partition, id domain.RecordID) error {
	if _, err := s.store.Get(ctx, p, id); err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return notFoundError()
		}
		return err
	}
	var b recordstore.Batch
	b.Delete(p, id)
	return s.store.Apply(ctx, b)
}

// activate performs the shared pending→active work for Approve and for the
// edit form's direct promotion: validate, allocate a card identifier, stamp
// dates and move the record into the Members partition in one batch.
func (s *Service) activate(ctx context.Context, rec domain.Record, in ApproveInput) (RecordView, error) {
	if !in.FeePaid {
		return RecordView{}, validationError("fee payment must be acknowledged", map[string]any{"feePaid": "must be true"})
	}
	if !rec.PrivacyConsent {
		return RecordView{}, validationError("privacy consent is required for activation", map[string]any{"privacyConsent": "must be true"})
	}
	now := s.clk.Now()
	if rec.IsMinor(now) && !rec.Guardian.Complete() {
		return RecordView{}, validationError("a minor requires a complete guardian record", map[string]any{"guardian": "firstName, lastName and birthDate are required"})
	}
	if err := validateRoles(in.Roles); err != nil {
		return RecordView{}, err
	}

	year := in.Year
	if year == "" {
		year = strconv.Itoa(now.Year())
	}
	yearNum, err := parseYear(year)
	if err != nil {
		return RecordView{}, validationError("invalid year", map[string]any{"year": "must be a four-digit year"})
	}
	fee, err := s.resolveFee(in.Fee, rec, now)
	if err != nil {
		return RecordView{}, err
	}

	members, err := s.store.List(ctx, domain.PartitionMembers)
	if err != nil {
		return RecordView{}, err
	}
	n, err := s.allocateTessera(members, year, in.TesseraNumber)
	if err != nil {
		return RecordView{}, err
	}

	moved, err := s.moveRecord(ctx, rec, domain.PartitionApplications, domain.PartitionMembers, func(r domain.Record) domain.Record {
		r.Tessera = domain.FormatTessera(s.cfg.TesseraPrefix, year, n)
		r.MembershipYear = year
		r.Fee = fee
		if in.Roles != nil {
			r.Roles = in.Roles
		}
		r.JoinDate = &now
		exp := domain.YearEnd(yearNum)
		r.ExpirationDate = &exp
		r.Rejected = false
		return r
	})
	if err != nil {
		return RecordView{}, err
	}
	return s.view(moved, domain.PartitionMembers), nil
}

// demote moves a Members record back to Applications, stripping the fields
// that are only meaningful for members.
func (s *Service) demote(ctx context.Context, rec domain.Record) (RecordView, error) {
	now := s.clk.Now()
	moved, err := s.moveRecord(ctx, rec, domain.PartitionMembers, domain.PartitionApplications, func(r domain.Record) domain.Record {
		r.Tessera = ""
		r.Fee = decimal.Zero
		r.JoinDate = nil
		r.RenewalDate = nil
		r.ExpirationDate = nil
		r.Rejected = false
		if r.RequestDate == nil {
			r.RequestDate = &now
		}
		return r
	})
	if err != nil {
		return RecordView{}, err
	}
	return s.view(moved, domain.PartitionApplications), nil
}

// moveRecord is the single cross-partition primitive: one delete in the source
// partition and one put in the target, keyed by the same id, committed as one
// atomic batch.
func (s *Service) moveRecord(ctx context.Context, rec domain.Record, from, to domain.Partition, transform func(domain.Record) domain.Record) (domain.Record, error) {
	moved := transform(rec.Clone())
	moved.ID = rec.ID

	var b recordstore.Batch
	b.Delete(from, rec.ID)
	b.Put(to, moved)
	if err := s.store.Apply(ctx, b); err != nil {
		return domain.Record{}, err
	}
	return moved, nil
}

func (s *Service) putInPlace(ctx context.Context, p domain.Partition, rec domain.Record) (RecordView, error) {
	var b recordstore.Batch
	b.Put(p, rec)
	if err := s.store.Apply(ctx, b); err != nil {
		return RecordView{}, err
	}
	return s.view(rec, p), nil
}

// allocateTessera picks the numeric suffix for a year: the requested number if
// free, otherwise the smallest positive integer not yet used (gap-filling).
func (s *Service) allocateTessera(members []domain.Record, year string, requested *int) (int, error) {
	used := domain.UsedTesseraNumbers(members, year)
	if requested != nil {
		if *requested <= 0 {
			return 0, validationError("invalid tessera number", map[string]any{"tesseraNumber": "must be positive"})
		}
		if used[*requested] {
			return 0, &Error{
				Status:  409,
				Code:    "TESSERA_TAKEN",
				Message: fmt.Sprintf("tessera number %d is already assigned for %s", *requested, year),
			}
		}
		return *requested, nil
	}
	return domain.NextTesseraNumber(used), nil
}

// resolveFee returns the explicit fee when provided, otherwise the default:
// zero for minors, the configured adult fee for everyone else.
func (s *Service) resolveFee(explicit *decimal.Decimal, rec domain.Record, at time.Time) (decimal.Decimal, error) {
	if explicit != nil {
		if explicit.IsNegative() {
			return decimal.Decimal{}, validationError("invalid fee", map[string]any{"fee": "must be non-negative"})
		}
		return *explicit, nil
	}
	if rec.IsMinor(at) {
		return decimal.Zero, nil
	}
	return s.cfg.AdultFee, nil
}

func (s *Service) view(rec domain.Record, p domain.Partition) RecordView {
	return RecordView{
		Record:    rec,
		Partition: p,
		Status:    domain.DeriveStatus(rec, p, s.clk.Now()),
	}
}

func applyPatch(rec domain.Record, in UpdateInput) (domain.Record, error) {
	applyName := func(dst *string, o Optional[string], field string) error {
		if !o.IsSpecified() {
			return nil
		}
		if o.IsNull() {
			return validationError("invalid "+field, map[string]any{field: "cannot be null"})
		}
		v := domain.NormalizeHumanName(o.Value())
		if v == "" {
			return validationError("invalid "+field, map[string]any{field: "must be non-empty"})
		}
		*dst = v
		return nil
	}
	if err := applyName(&rec.FirstName, in.FirstName, "firstName"); err != nil {
		return domain.Record{}, err
	}
	if err := applyName(&rec.LastName, in.LastName, "lastName"); err != nil {
		return domain.Record{}, err
	}

	applyString := func(dst *string, o Optional[string]) {
		if !o.IsSpecified() {
			return
		}
		if o.IsNull() {
			*dst = ""
			return
		}
		*dst = o.Value()
	}
	applyString(&rec.Gender, in.Gender)
	applyString(&rec.BirthPlace, in.BirthPlace)
	applyString(&rec.Email, in.Email)
	applyString(&rec.Phone, in.Phone)
	applyString(&rec.Address, in.Address)
	applyString(&rec.City, in.City)
	applyString(&rec.PostalCode, in.PostalCode)
	applyString(&rec.Province, in.Province)
	if in.FiscalCode.IsSpecified() {
		if in.FiscalCode.IsNull() {
			rec.FiscalCode = ""
		} else {
			rec.FiscalCode = domain.NormalizeFiscalCode(in.FiscalCode.Value())
		}
	}

	if in.BirthDate.IsSpecified() {
		if in.BirthDate.IsNull() || in.BirthDate.Value().IsZero() {
			return domain.Record{}, validationError("invalid birthDate", map[string]any{"birthDate": "must be set"})
		}
		rec.BirthDate = in.BirthDate.Value()
	}
	if in.PrivacyConsent.IsSpecified() && !in.PrivacyConsent.IsNull() {
		rec.PrivacyConsent = in.PrivacyConsent.Value()
	}
	if in.CommsConsent.IsSpecified() && !in.CommsConsent.IsNull() {
		rec.CommsConsent = in.CommsConsent.Value()
	}
	if in.Guardian.IsSpecified() {
		if in.Guardian.IsNull() {
			rec.Guardian = nil
		} else {
			g := in.Guardian.Value()
			rec.Guardian = guardianFromInput(&g)
		}
	}
	if in.Notes.IsSpecified() {
		if in.Notes.IsNull() {
			rec.Notes = ""
		} else {
			rec.Notes = in.Notes.Value()
		}
	}
	if in.Fee.IsSpecified() && !in.Fee.IsNull() {
		if in.Fee.Value().IsNegative() {
			return domain.Record{}, validationError("invalid fee", map[string]any{"fee": "must be non-negative"})
		}
		rec.Fee = in.Fee.Value()
	}
	if in.Roles.IsSpecified() {
		if in.Roles.IsNull() {
			rec.Roles = nil
		} else {
			if err := validateRoles(in.Roles.Value()); err != nil {
				return domain.Record{}, err
			}
			rec.Roles = in.Roles.Value()
		}
	}
	return rec, nil
}

func guardianFromInput(in *GuardianInput) *domain.Guardian {
	if in == nil {
		return nil
	}
	return &domain.Guardian{
		FirstName: domain.NormalizeHumanName(in.FirstName),
		LastName:  domain.NormalizeHumanName(in.LastName),
		BirthDate: in.BirthDate,
	}
}

func validateRoles(roles []domain.RoleTag) error {
	for _, t := range roles {
		if !domain.ValidRoleTag(t) {
			return validationError("unknown role tag", map[string]any{"roles": string(t)})
		}
	}
	return nil
}

func parseYear(year string) (int, error) {
	n, err := strconv.Atoi(year)
	if err != nil || n < 1900 || n > 9999 {
		return 0, errors.New("invalid year")
	}
	return n, nil
}

// prependNote puts a system-authored lifecycle note ahead of any prior notes.
func prependNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return note + "\n" + existing
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func optionalToPtr[T any](o Optional[T]) *T {
	if !o.IsSpecified() || o.IsNull() {
		return nil
	}
	v := o.Value()
	return &v
}
