package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"

	"github.com/gmc-club/membership-api/internal/app/lifecycle"
	"github.com/gmc-club/membership-api/internal/domain"
)

type guardianJSON struct {
	FirstName string             `json:"firstName"`
	LastName  string             `json:"lastName"`
	BirthDate openapi_types.Date `json:"birthDate"`
}

type recordResponse struct {
	ID         string             `json:"id"`
	FirstName  string             `json:"firstName"`
	LastName   string             `json:"lastName"`
	Gender     string             `json:"gender,omitempty"`
	BirthDate  openapi_types.Date `json:"birthDate"`
	BirthPlace string             `json:"birthPlace,omitempty"`
	FiscalCode string             `json:"fiscalCode,omitempty"`
	Email      string             `json:"email,omitempty"`
	Phone      string             `json:"phone,omitempty"`
	Address    string             `json:"address,omitempty"`
	City       string             `json:"city,omitempty"`
	PostalCode string             `json:"postalCode,omitempty"`
	Province   string             `json:"province,omitempty"`

	PrivacyConsent bool `json:"privacyConsent"`
	CommsConsent   bool `json:"commsConsent"`

	Guardian *guardianJSON `json:"guardian,omitempty"`

	MembershipYear string   `json:"membershipYear,omitempty"`
	Tessera        string   `json:"tessera,omitempty"`
	Fee            string   `json:"fee"`
	Roles          []string `json:"roles,omitempty"`
	Notes          string   `json:"notes,omitempty"`

	RequestDate    *time.Time `json:"requestDate,omitempty"`
	JoinDate       *time.Time `json:"joinDate,omitempty"`
	RenewalDate    *time.Time `json:"renewalDate,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`

	Partition string `json:"partition"`
	Status    string `json:"status"`
}

type pageResponse struct {
	Items     []recordResponse `json:"items"`
	Page      int              `json:"page"`
	PageCount int              `json:"pageCount"`
	Total     int              `json:"total"`
}

type submitApplicationRequest struct {
	FirstName  string             `json:"firstName"`
	LastName   string             `json:"lastName"`
	Gender     string             `json:"gender,omitempty"`
	BirthDate  openapi_types.Date `json:"birthDate"`
	BirthPlace string             `json:"birthPlace,omitempty"`
	FiscalCode string             `json:"fiscalCode,omitempty"`
	Email      string             `json:"email,omitempty"`
	Phone      string             `json:"phone,omitempty"`
	Address    string             `json:"address,omitempty"`
	City       string             `json:"city,omitempty"`
	PostalCode string             `json:"postalCode,omitempty"`
	Province   string             `json:"province,omitempty"`

	PrivacyConsent bool `json:"privacyConsent"`
	CommsConsent   bool `json:"commsConsent"`

	Guardian *guardianJSON `json:"guardian,omitempty"`
	Notes    string        `json:"notes,omitempty"`
}

type approveRequest struct {
	Year          string   `json:"year,omitempty"`
	TesseraNumber *int     `json:"tesseraNumber,omitempty"`
	Fee           *string  `json:"fee,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	FeePaid       bool     `json:"feePaid"`
}

type renewRequest struct {
	Year    string   `json:"year"`
	Fee     *string  `json:"fee,omitempty"`
	Roles   []string `json:"roles,omitempty"`
	FeePaid bool     `json:"feePaid"`
}

// recordPatchRequest distinguishes omitted, null and valued fields so the edit
// form can clear optionals explicitly.
type recordPatchRequest struct {
	FirstName  nullable.Nullable[string]             `json:"firstName,omitempty"`
	LastName   nullable.Nullable[string]             `json:"lastName,omitempty"`
	Gender     nullable.Nullable[string]             `json:"gender,omitempty"`
	BirthDate  nullable.Nullable[openapi_types.Date] `json:"birthDate,omitempty"`
	BirthPlace nullable.Nullable[string]             `json:"birthPlace,omitempty"`
	FiscalCode nullable.Nullable[string]             `json:"fiscalCode,omitempty"`
	Email      nullable.Nullable[string]             `json:"email,omitempty"`
	Phone      nullable.Nullable[string]             `json:"phone,omitempty"`
	Address    nullable.Nullable[string]             `json:"address,omitempty"`
	City       nullable.Nullable[string]             `json:"city,omitempty"`
	PostalCode nullable.Nullable[string]             `json:"postalCode,omitempty"`
	Province   nullable.Nullable[string]             `json:"province,omitempty"`

	PrivacyConsent nullable.Nullable[bool] `json:"privacyConsent,omitempty"`
	CommsConsent   nullable.Nullable[bool] `json:"commsConsent,omitempty"`

	Guardian nullable.Nullable[guardianJSON] `json:"guardian,omitempty"`
	Notes    nullable.Nullable[string]       `json:"notes,omitempty"`

	Fee   nullable.Nullable[string]   `json:"fee,omitempty"`
	Roles nullable.Nullable[[]string] `json:"roles,omitempty"`

	Status        nullable.Nullable[string] `json:"status,omitempty"`
	TesseraNumber nullable.Nullable[int]    `json:"tesseraNumber,omitempty"`
	FeePaid       bool                      `json:"feePaid,omitempty"`
}

type importResponse struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func toRecordResponse(v lifecycle.RecordView) recordResponse {
	out := recordResponse{
		ID:             string(v.ID),
		FirstName:      v.FirstName,
		LastName:       v.LastName,
		Gender:         v.Gender,
		BirthDate:      openapi_types.Date{Time: v.Record.BirthDate},
		BirthPlace:     v.BirthPlace,
		FiscalCode:     v.FiscalCode,
		Email:          v.Email,
		Phone:          v.Phone,
		Address:        v.Address,
		City:           v.City,
		PostalCode:     v.PostalCode,
		Province:       v.Province,
		PrivacyConsent: v.PrivacyConsent,
		CommsConsent:   v.CommsConsent,
		MembershipYear: v.MembershipYear,
		Tessera:        v.Tessera,
		Fee:            v.Fee.StringFixed(2),
		Notes:          v.Notes,
		RequestDate:    v.RequestDate,
		JoinDate:       v.JoinDate,
		RenewalDate:    v.RenewalDate,
		ExpirationDate: v.ExpirationDate,
		Partition:      string(v.Partition),
		Status:         string(v.Status),
	}
	if v.Guardian != nil {
		out.Guardian = &guardianJSON{
			FirstName: v.Guardian.FirstName,
			LastName:  v.Guardian.LastName,
			BirthDate: openapi_types.Date{Time: v.Guardian.BirthDate},
		}
	}
	for _, t := range v.Roles {
		out.Roles = append(out.Roles, string(t))
	}
	return out
}

func toGuardianInput(g *guardianJSON) *lifecycle.GuardianInput {
	if g == nil {
		return nil
	}
	return &lifecycle.GuardianInput{
		FirstName: g.FirstName,
		LastName:  g.LastName,
		BirthDate: g.BirthDate.Time,
	}
}

func toRoleTags(roles []string) []domain.RoleTag {
	if roles == nil {
		return nil
	}
	out := make([]domain.RoleTag, 0, len(roles))
	for _, r := range roles {
		out = append(out, domain.RoleTag(r))
	}
	return out
}

func parseFeeField(v *string) (*decimal.Decimal, error) {
	if v == nil {
		return nil, nil
	}
	fee, err := decimal.NewFromString(*v)
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

func opt[T any](n nullable.Nullable[T]) lifecycle.Optional[T] {
	if !n.IsSpecified() {
		return lifecycle.Unspecified[T]()
	}
	if n.IsNull() {
		return lifecycle.Null[T]()
	}
	return lifecycle.Some(n.MustGet())
}
