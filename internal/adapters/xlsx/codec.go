// Package xlsx reads and writes the tabular exchange format used for bulk
// import and export. Column labels are the member-facing Italian ones, not
// internal field names, so a file exported here can be re-imported as-is.
package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/gmc-club/membership-api/internal/app/reconcile"
	"github.com/gmc-club/membership-api/internal/domain"
)

const (
	// SheetMembers is the fixed sheet name the importer reads.
	SheetMembers = "Soci"
	// SheetApplications is the second export sheet; the importer also reads it
	// when present so an export round-trips completely.
	SheetApplications = "Richieste"
)

const (
	colFirstName         = "Nome"
	colLastName          = "Cognome"
	colGender            = "Sesso"
	colBirthDate         = "Data di Nascita"
	colBirthPlace        = "Luogo di Nascita"
	colFiscalCode        = "Codice Fiscale"
	colEmail             = "Email"
	colPhone             = "Telefono"
	colAddress           = "Indirizzo"
	colCity              = "Città"
	colPostalCode        = "CAP"
	colProvince          = "Provincia"
	colStatus            = "Stato"
	colTessera           = "Tessera"
	colYear              = "Anno"
	colFee               = "Quota"
	colRoles             = "Qualifiche"
	colPrivacy           = "Consenso Privacy"
	colComms             = "Consenso Comunicazioni"
	colGuardianFirstName = "Tutore Nome"
	colGuardianLastName  = "Tutore Cognome"
	colGuardianBirthDate = "Tutore Data di Nascita"
	colRequestDate       = "Data Richiesta"
	colJoinDate          = "Data Iscrizione"
	colRenewalDate       = "Data Rinnovo"
	colExpirationDate    = "Data Scadenza"
	colNotes             = "Note"
)

var columns = []string{
	colFirstName, colLastName, colGender, colBirthDate, colBirthPlace,
	colFiscalCode, colEmail, colPhone, colAddress, colCity, colPostalCode,
	colProvince, colStatus, colTessera, colYear, colFee, colRoles,
	colPrivacy, colComms,
	colGuardianFirstName, colGuardianLastName, colGuardianBirthDate,
	colRequestDate, colJoinDate, colRenewalDate, colExpirationDate, colNotes,
}

// Codec parses and renders the exchange spreadsheet.
type Codec struct {
	log *zap.Logger
}

func NewCodec(log *zap.Logger) *Codec {
	if log == nil {
		log = zap.NewNop()
	}
	return &Codec{log: log}
}

// Read parses the fixed import sheet (plus the applications sheet when the
// file carries one) into reconciliation rows. Unparseable dates are emptied
// with a logged warning rather than failing the row; rows missing the match
// key are still returned and left to the reconciler to count as errors.
func (c *Codec) Read(r io.Reader) ([]reconcile.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := c.readSheet(f, SheetMembers)
	if err != nil {
		return nil, err
	}
	if idx, _ := f.GetSheetIndex(SheetApplications); idx >= 0 {
		more, err := c.readSheet(f, SheetApplications)
		if err != nil {
			return nil, err
		}
		rows = append(rows, more...)
	}
	return rows, nil
}

func (c *Codec) readSheet(f *excelize.File, sheet string) ([]reconcile.Row, error) {
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(raw[0]))
	for i, label := range raw[0] {
		index[strings.TrimSpace(label)] = i
	}

	out := make([]reconcile.Row, 0, len(raw)-1)
	for lineIdx, cells := range raw[1:] {
		line := lineIdx + 2 // 1-based, after the header
		cell := func(label string) string {
			i, ok := index[label]
			if !ok || i >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[i])
		}
		if isBlankRow(cells) {
			continue
		}

		row := reconcile.Row{
			Line:              line,
			FirstName:         cell(colFirstName),
			LastName:          cell(colLastName),
			Gender:            cell(colGender),
			BirthPlace:        cell(colBirthPlace),
			FiscalCode:        cell(colFiscalCode),
			Email:             cell(colEmail),
			Phone:             cell(colPhone),
			Address:           cell(colAddress),
			City:              cell(colCity),
			PostalCode:        cell(colPostalCode),
			Province:          cell(colProvince),
			StatusText:        cell(colStatus),
			Tessera:           cell(colTessera),
			MembershipYear:    cell(colYear),
			Notes:             cell(colNotes),
			GuardianFirstName: cell(colGuardianFirstName),
			GuardianLastName:  cell(colGuardianLastName),
		}
		row.BirthDate = c.parseDateCell(sheet, line, colBirthDate, cell(colBirthDate))
		row.GuardianBirthDate = c.parseDateCell(sheet, line, colGuardianBirthDate, cell(colGuardianBirthDate))
		row.RequestDate = c.parseDateCell(sheet, line, colRequestDate, cell(colRequestDate))
		row.JoinDate = c.parseDateCell(sheet, line, colJoinDate, cell(colJoinDate))
		row.RenewalDate = c.parseDateCell(sheet, line, colRenewalDate, cell(colRenewalDate))
		row.ExpirationDate = c.parseDateCell(sheet, line, colExpirationDate, cell(colExpirationDate))

		if v := cell(colFee); v != "" {
			if fee, err := parseFee(v); err == nil {
				row.Fee = &fee
			} else {
				c.log.Warn("unparseable fee cell",
					zap.String("sheet", sheet), zap.Int("line", line), zap.String("value", v))
			}
		}
		if v := cell(colRoles); v != "" {
			row.Roles = parseRoles(v)
		}
		if v := cell(colPrivacy); v != "" {
			b := parseBool(v)
			row.PrivacyConsent = &b
		}
		if v := cell(colComms); v != "" {
			b := parseBool(v)
			row.CommsConsent = &b
		}
		out = append(out, row)
	}
	return out, nil
}

// Write renders both partitions to a new spreadsheet: members on the fixed
// import sheet, applications on the second one. Status labels are the same
// ones Read classifies, so the output re-imports without creating duplicates.
func (c *Codec) Write(w io.Writer, members, applications []domain.Record, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, SheetMembers, domain.PartitionMembers, members, now); err != nil {
		return err
	}
	if err := writeSheet(f, SheetApplications, domain.PartitionApplications, applications, now); err != nil {
		return err
	}
	// Drop the default sheet excelize creates.
	if idx, _ := f.GetSheetIndex(SheetMembers); idx >= 0 {
		f.SetActiveSheet(idx)
	}
	_ = f.DeleteSheet("Sheet1")

	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, p domain.Partition, records []domain.Record, now time.Time) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	header := make([]any, len(columns))
	for i, label := range columns {
		header[i] = label
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, r := range records {
		row := []any{
			r.FirstName,
			r.LastName,
			r.Gender,
			formatDate(&r.BirthDate),
			r.BirthPlace,
			r.FiscalCode,
			r.Email,
			r.Phone,
			r.Address,
			r.City,
			r.PostalCode,
			r.Province,
			statusLabel(domain.DeriveStatus(r, p, now)),
			r.Tessera,
			r.MembershipYear,
			r.Fee.StringFixed(2),
			formatRoles(r.Roles),
			formatBool(r.PrivacyConsent),
			formatBool(r.CommsConsent),
			guardianField(r.Guardian, func(g *domain.Guardian) string { return g.FirstName }),
			guardianField(r.Guardian, func(g *domain.Guardian) string { return g.LastName }),
			guardianBirthDate(r.Guardian),
			formatDate(r.RequestDate),
			formatDate(r.JoinDate),
			formatDate(r.RenewalDate),
			formatDate(r.ExpirationDate),
			r.Notes,
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return err
		}
	}
	return nil
}

func statusLabel(s domain.Status) string {
	switch s {
	case domain.StatusActive:
		return "Attivo"
	case domain.StatusExpired:
		return "Scaduto"
	case domain.StatusRejected:
		return "Respinto"
	default:
		return "Sospeso"
	}
}

// parseDateCell accepts native spreadsheet date serials and the text formats
// dd/MM/yyyy, dd.MM.yyyy and ISO, tried in that order. Failures yield nil with
// a warning so one bad cell never poisons the row.
func (c *Codec) parseDateCell(sheet string, line int, label, value string) *time.Time {
	if value == "" {
		return nil
	}
	if t, ok := parseDate(value); ok {
		return &t
	}
	c.log.Warn("unparseable date cell",
		zap.String("sheet", sheet),
		zap.Int("line", line),
		zap.String("column", label),
		zap.String("value", value))
	return nil
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range []string{"02/01/2006", "02.01.2006", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	// Native date cells arrive as Excel serial numbers in raw mode.
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseFee(value string) (decimal.Decimal, error) {
	v := strings.TrimSpace(strings.TrimPrefix(value, "€"))
	v = strings.ReplaceAll(v, ",", ".")
	return decimal.NewFromString(strings.TrimSpace(v))
}

func parseRoles(value string) []domain.RoleTag {
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]domain.RoleTag, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, domain.RoleTag(p))
		}
	}
	return out
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sì", "si", "true", "1", "x", "yes":
		return true
	}
	return false
}

func formatBool(b bool) string {
	if b {
		return "Sì"
	}
	return "No"
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

func formatRoles(roles []domain.RoleTag) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, "; ")
}

func guardianField(g *domain.Guardian, f func(*domain.Guardian) string) string {
	if g == nil {
		return ""
	}
	return f(g)
}

func guardianBirthDate(g *domain.Guardian) string {
	if g == nil || g.BirthDate.IsZero() {
		return ""
	}
	return g.BirthDate.Format("02/01/2006")
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
