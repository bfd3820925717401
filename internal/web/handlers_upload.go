package web

import (
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/logging"
	"github.com/JonMunkholm/lending/internal/sheet"
)

// multipartMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

// handleUpload loads every file of the "files" field in one transaction.
// Zero-length parts are skipped.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			s.respondError(w, r, err)
			return
		}
		respondText(w, http.StatusBadRequest, s.consts.UploadNoFiles)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var headers []*multipart.FileHeader
	for _, fh := range r.MultipartForm.File["files"] {
		if fh.Size > 0 {
			headers = append(headers, fh)
		}
	}
	if len(headers) == 0 {
		respondText(w, http.StatusBadRequest, s.consts.UploadNoFiles)
		return
	}

	files := make([]core.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		defer f.Close()
		files = append(files, core.UploadedFile{Name: fh.Filename, Size: fh.Size, Reader: f})
	}

	result, err := s.svc.Upload.Upload(r.Context(), files)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, result)
		return
	}
	respondText(w, http.StatusOK, s.svc.Upload.SuccessMessage(result))
}

// handleConvertExcel converts the workbook in the "file" field to a zip of
// CSV documents named after the upload.
func (s *Server) handleConvertExcel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			s.respondError(w, r, err)
			return
		}
		s.respondError(w, r, core.ErrNoFiles)
		return
	}
	defer file.Close()

	out := newAttachmentWriter(w, "application/zip", sheet.ArchiveName(header.Filename))
	result, err := s.svc.Sheets.Convert(r.Context(), file, out)
	if err != nil {
		if out.started() {
			logging.FromContext(r.Context()).Error("conversion failed mid-stream", "file", header.Filename, "error", err)
			return
		}
		s.respondError(w, r, err)
		return
	}
	if !out.started() {
		// Close on an archive with no entries still writes the directory.
		out.begin()
	}

	logging.FromContext(r.Context()).Info("workbook converted",
		"file", header.Filename,
		"sheets", len(result.Sheets),
		"skipped", len(result.Skipped),
	)
}
