package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gmc-club/membership-api/internal/adapters/xlsx"
	"github.com/gmc-club/membership-api/internal/app/directory"
	"github.com/gmc-club/membership-api/internal/app/lifecycle"
	"github.com/gmc-club/membership-api/internal/app/reconcile"
	"github.com/gmc-club/membership-api/internal/domain"
	clockport "github.com/gmc-club/membership-api/internal/ports/out/clock"
)

// maxImportSize caps the spreadsheet upload at 20 MiB.
const maxImportSize = 20 << 20

// Server holds the wired application services behind the HTTP routes.
type Server struct {
	Lifecycle *lifecycle.Service
	Importer  *reconcile.Service
	Codec     *xlsx.Codec
	Clock     clockport.Clock
	PageSize  int
	Log       *zap.Logger
}

func NewServer(lc *lifecycle.Service, imp *reconcile.Service, codec *xlsx.Codec, clk clockport.Clock, pageSize int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Lifecycle: lc,
		Importer:  imp,
		Codec:     codec,
		Clock:     clk,
		PageSize:  pageSize,
		Log:       log,
	}
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	s.handleList(w, r, domain.PartitionMembers)
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	s.handleList(w, r, domain.PartitionApplications)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, p domain.Partition) {
	views, err := s.Lifecycle.List(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	records := make([]domain.Record, 0, len(views))
	for _, v := range views {
		records = append(records, v.Record)
	}

	q := directory.Query{
		Filter: r.URL.Query().Get("q"),
		Sort:   r.URL.Query().Get("sort"),
		Desc:   r.URL.Query().Get("dir") == "desc",
	}
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "page must be an integer", map[string]any{"page": raw})
			return
		}
		q.Page = n
	}

	page := directory.View(records, p, s.Clock.Now(), q, s.PageSize)

	out := pageResponse{
		Items:     make([]recordResponse, 0, len(page.Items)),
		Page:      page.Page,
		PageCount: page.PageCount,
		Total:     page.Total,
	}
	for _, e := range page.Items {
		out.Items = append(out.Items, toRecordResponse(lifecycle.RecordView{
			Record:    e.Record,
			Partition: p,
			Status:    e.Status,
		}))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	s.handleGet(w, r, domain.PartitionMembers)
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	s.handleGet(w, r, domain.PartitionApplications)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, p domain.Partition) {
	view, err := s.Lifecycle.Get(r.Context(), p, recordID(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(view))
}

func (s *Server) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req submitApplicationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := s.Lifecycle.SubmitApplication(r.Context(), lifecycle.ApplicationInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Gender:         req.Gender,
		BirthDate:      req.BirthDate.Time,
		BirthPlace:     req.BirthPlace,
		FiscalCode:     req.FiscalCode,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
		City:           req.City,
		PostalCode:     req.PostalCode,
		Province:       req.Province,
		PrivacyConsent: req.PrivacyConsent,
		CommsConsent:   req.CommsConsent,
		Guardian:       toGuardianInput(req.Guardian),
		Notes:          req.Notes,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(view))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	fee, err := parseFeeField(req.Fee)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "fee must be a decimal amount", map[string]any{"fee": *req.Fee})
		return
	}

	view, err := s.Lifecycle.Approve(r.Context(), recordID(r), lifecycle.ApproveInput{
		Year:          req.Year,
		TesseraNumber: req.TesseraNumber,
		Fee:           fee,
		Roles:         toRoleTags(req.Roles),
		FeePaid:       req.FeePaid,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(view))
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	if err := s.Lifecycle.Reject(r.Context(), recordID(r)); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	fee, err := parseFeeField(req.Fee)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "fee must be a decimal amount", map[string]any{"fee": *req.Fee})
		return
	}

	view, err := s.Lifecycle.Renew(r.Context(), recordID(r), lifecycle.RenewInput{
		Year:    req.Year,
		Fee:     fee,
		Roles:   toRoleTags(req.Roles),
		FeePaid: req.FeePaid,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(view))
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	s.handleUpdate(w, r, domain.PartitionMembers)
}

func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	s.handleUpdate(w, r, domain.PartitionApplications)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, p domain.Partition) {
	var req recordPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := toUpdateInput(req)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	view, err := s.Lifecycle.Update(r.Context(), p, recordID(r), in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(view))
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, domain.PartitionMembers)
}

func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, domain.PartitionApplications)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, p domain.Partition) {
	if err := s.Lifecycle.Delete(r.Context(), p, recordID(r)); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "expected a multipart form with a file field", nil)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing file field", nil)
		return
	}
	defer file.Close()

	rows, err := s.Codec.Read(file)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "INVALID_SPREADSHEET", err.Error(), nil)
		return
	}

	sum, err := s.Importer.Import(r.Context(), rows)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		Created: sum.Created,
		Updated: sum.Updated,
		Skipped: sum.Skipped,
		Failed:  sum.Failed,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	members, err := s.Lifecycle.List(r.Context(), domain.PartitionMembers)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	applications, err := s.Lifecycle.List(r.Context(), domain.PartitionApplications)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	now := s.Clock.Now()
	var buf bytes.Buffer
	if err := s.Codec.Write(&buf, viewRecords(members), viewRecords(applications), now); err != nil {
		s.Log.Error("spreadsheet export failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "EXPORT_FAILED", "could not build the spreadsheet", nil)
		return
	}

	filename := fmt.Sprintf("soci-%s.xlsx", now.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func recordID(r *http.Request) domain.RecordID {
	return domain.RecordID(chi.URLParam(r, "id"))
}

func viewRecords(views []lifecycle.RecordView) []domain.Record {
	out := make([]domain.Record, 0, len(views))
	for _, v := range views {
		out = append(out, v.Record)
	}
	return out
}

func toUpdateInput(req recordPatchRequest) (lifecycle.UpdateInput, error) {
	in := lifecycle.UpdateInput{
		FirstName:      opt(req.FirstName),
		LastName:       opt(req.LastName),
		Gender:         opt(req.Gender),
		BirthPlace:     opt(req.BirthPlace),
		FiscalCode:     opt(req.FiscalCode),
		Email:          opt(req.Email),
		Phone:          opt(req.Phone),
		Address:        opt(req.Address),
		City:           opt(req.City),
		PostalCode:     opt(req.PostalCode),
		Province:       opt(req.Province),
		PrivacyConsent: opt(req.PrivacyConsent),
		CommsConsent:   opt(req.CommsConsent),
		Notes:          opt(req.Notes),
		TesseraNumber:  opt(req.TesseraNumber),
		FeePaid:        req.FeePaid,
	}

	switch {
	case !req.BirthDate.IsSpecified():
	case req.BirthDate.IsNull():
		in.BirthDate = lifecycle.Null[time.Time]()
	default:
		in.BirthDate = lifecycle.Some(req.BirthDate.MustGet().Time)
	}

	switch {
	case !req.Guardian.IsSpecified():
	case req.Guardian.IsNull():
		in.Guardian = lifecycle.Null[lifecycle.GuardianInput]()
	default:
		g := req.Guardian.MustGet()
		in.Guardian = lifecycle.Some(lifecycle.GuardianInput{
			FirstName: g.FirstName,
			LastName:  g.LastName,
			BirthDate: g.BirthDate.Time,
		})
	}

	switch {
	case !req.Fee.IsSpecified():
	case req.Fee.IsNull():
		in.Fee = lifecycle.Null[decimal.Decimal]()
	default:
		fee, err := parseFeeField(ptr(req.Fee.MustGet()))
		if err != nil {
			return in, fmt.Errorf("fee must be a decimal amount")
		}
		in.Fee = lifecycle.Some(*fee)
	}

	switch {
	case !req.Roles.IsSpecified():
	case req.Roles.IsNull():
		in.Roles = lifecycle.Null[[]domain.RoleTag]()
	default:
		in.Roles = lifecycle.Some(toRoleTags(req.Roles.MustGet()))
	}

	switch {
	case !req.Status.IsSpecified():
	case req.Status.IsNull():
		return in, fmt.Errorf("status cannot be null")
	default:
		in.Status = lifecycle.Some(domain.Status(strings.ToLower(req.Status.MustGet())))
	}

	return in, nil
}

func ptr[T any](v T) *T { return &v }

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed JSON body", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
