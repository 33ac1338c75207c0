package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gmc-club/membership-api/internal/domain"
)

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

type GuardianInput struct {
	FirstName string
	LastName  string
	BirthDate time.Time
}

// ApplicationInput is the data captured by the membership request form.
type ApplicationInput struct {
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

	PrivacyConsent bool
	CommsConsent   bool

	Guardian *GuardianInput
	Notes    string
}

// ApproveInput parameterizes the pending→active transition. FeePaid must be
// true or the transition is refused with no write attempted.
type ApproveInput struct {
	// Year is the target membership year; empty means the current year.
	Year string
	// TesseraNumber overrides the allocated numeric suffix; nil means allocate.
	TesseraNumber *int
	// Fee overrides the default fee (0 for minors, the configured default for
	// adults).
	Fee   *decimal.Decimal
	Roles []domain.RoleTag

	FeePaid bool
}

// RenewInput parameterizes the renew transition for a Members-partition record.
type RenewInput struct {
	Year  string
	Fee   *decimal.Decimal
	Roles []domain.RoleTag

	FeePaid bool
}

// UpdateInput is the tri-state patch applied by the edit form. Setting Status
// may move the record across partitions: "pending" demotes a member back to
// the Applications partition, "active" promotes an application the same way
// approve does (and then requires FeePaid), "rejected" sets the explicit
// marker on an application.
type UpdateInput struct {
	FirstName  Optional[string]
	LastName   Optional[string]
	Gender     Optional[string]
	BirthDate  Optional[time.Time]
	BirthPlace Optional[string]
	FiscalCode Optional[string]
	Email      Optional[string]
	Phone      Optional[string]
	Address    Optional[string]
	City       Optional[string]
	PostalCode Optional[string]
	Province   Optional[string]

	PrivacyConsent Optional[bool]
	CommsConsent   Optional[bool]

	Guardian Optional[GuardianInput]
	Notes    Optional[string]

	Fee   Optional[decimal.Decimal]
	Roles Optional[[]domain.RoleTag]

	Status        Optional[domain.Status]
	TesseraNumber Optional[int]
	FeePaid       bool
}

// RecordView is a record together with its holding partition and derived status.
type RecordView struct {
	domain.Record
	Partition domain.Partition
	Status    domain.Status
}
