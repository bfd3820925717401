package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/lending/internal/report"
	"github.com/go-chi/chi/v5"
)

// handleGenerateReport streams the status report as a CSV attachment.
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	out := newAttachmentWriter(w, "text/csv", s.consts.ReportFileName)

	n, err := s.svc.Report.Generate(r.Context(), out)
	switch {
	case errors.Is(err, report.ErrNoData):
		respondText(w, http.StatusNoContent, s.consts.NoReportData)
	case errors.Is(err, report.ErrQueryNotFound):
		s.logError(r, err, http.StatusBadRequest)
		respondText(w, http.StatusBadRequest, s.consts.ReportQueryNotFound)
	case err != nil && out.started():
		s.logError(r, err, http.StatusOK)
	case err != nil:
		s.respondError(w, r, err)
	default:
		s.logInfo(r, "report generated", "rows", n)
	}
}

// handleRunJar runs the jar job. Configuration and process failures are
// reported in the body with status 200, the way operators expect them.
func (s *Server) handleRunJar(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Jar.Run(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, result)
		return
	}
	respondText(w, http.StatusOK, result.Message)
}

// handleDataConversion runs the conversion and replies with segment counts.
func (s *Server) handleDataConversion(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Conversion.Run(r.Context())
	if err != nil {
		s.logError(r, err, http.StatusInternalServerError)
		respondText(w, http.StatusInternalServerError, s.svc.Conversion.FailureMessage(err))
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, result)
		return
	}
	respondText(w, http.StatusOK, result.Message)
}

// handleListSegments lists the configured segments.
func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Segments.Segments())
}

// handleMigrateSegment migrates one segment and returns its table count.
func (s *Server) handleMigrateSegment(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.Segments.MigrateSegment(r.Context(), chi.URLParam(r, "segment"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, count)
}

// handleTruncateSegment empties one segment table.
func (s *Server) handleTruncateSegment(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Segments.TruncateSegment(r.Context(), chi.URLParam(r, "segment")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDuplicateTables backs up the segment tables under the given date.
func (s *Server) handleDuplicateTables(w http.ResponseWriter, r *http.Request) {
	date := r.FormValue("date")
	if err := s.svc.Segments.DuplicateTables(r.Context(), date); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondText(w, http.StatusOK, "Tables duplicated for "+date+".")
}

// handleDropBackup drops the backup tables.
func (s *Server) handleDropBackup(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Segments.DropBackup(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondText(w, http.StatusOK, "Backup tables dropped.")
}

// handleHealth pings the database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DB.Ping(r.Context()); err != nil {
		s.respondErrorStatus(w, r, err, http.StatusServiceUnavailable)
		return
	}
	respondText(w, http.StatusOK, "ok")
}
