package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aurix/reconciler/internal/export"
	"github.com/aurix/reconciler/internal/ledger"
)

// Upload size limit for reconciliation workbooks.
const maxUploadBytes = 50 << 20 // 50 MiB

// handleReconcile handles POST /api/reconcile: run the full pipeline on
// an uploaded workbook and return all data products as JSON.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.runUploaded(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// handleReconcileExport handles POST /api/reconcile/export: run the
// pipeline and return the formatted Excel report.
func (s *Server) handleReconcileExport(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.runUploaded(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=reconciliation_%s.xlsx", payload.RunID))

	if err := export.WriteExcel(w, payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to write Excel report")
	}
}

// runUploaded parses the uploaded workbook, runs the pipeline and
// persists the audit trail. On failure it writes the HTTP error itself
// and returns ok=false.
func (s *Server) runUploaded(w http.ResponseWriter, r *http.Request) (*export.Payload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "Expected multipart form with a workbook file")
		return nil, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Missing workbook upload under field 'file'")
		return nil, false
	}
	defer file.Close()

	wb, err := ledger.ReadWorkbook(file)
	if err != nil {
		s.log.Warn().Err(err).Msg("Rejected workbook upload")
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	}

	tolerance, err := parseToleranceOverride(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	payload := s.runner.Run(wb, tolerance)

	if err := s.auditRepo.SaveRun(payload.RunID, payload.AuditTrail); err != nil {
		// The run itself succeeded; losing the persisted copy of the
		// trail is logged but does not fail the request.
		s.log.Error().Err(err).Str("run_id", payload.RunID).Msg("Failed to persist audit trail")
	}

	return payload, true
}

func parseToleranceOverride(r *http.Request) (*float64, error) {
	raw := r.URL.Query().Get("tolerance")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("invalid tolerance %q", raw)
	}
	return &v, nil
}

// handleAuditRecent handles GET /api/audit - most recent persisted entries
func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 1 || l > 10000 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit. Must be 1-10000")
			return
		}
		limit = l
	}

	entries, err := s.auditRepo.ListRecent(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list audit entries")
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve audit entries")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

// handleAuditByRun handles GET /api/audit/{runID} - one run's trail
func (s *Server) handleAuditByRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	entries, err := s.auditRepo.ListByRun(runID)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load audit trail")
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve audit trail")
		return
	}
	if len(entries) == 0 {
		s.writeError(w, http.StatusNotFound, "Unknown run ID")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}
