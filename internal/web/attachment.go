package web

import (
	"net/http"
	"strings"
)

// attachmentWriter sets the download headers on the first write, so a
// handler can still send an error status if the producer fails first.
type attachmentWriter struct {
	w           http.ResponseWriter
	contentType string
	filename    string
	wrote       bool
}

func newAttachmentWriter(w http.ResponseWriter, contentType, filename string) *attachmentWriter {
	return &attachmentWriter{w: w, contentType: contentType, filename: filename}
}

func (a *attachmentWriter) Write(p []byte) (int, error) {
	if !a.wrote {
		a.begin()
	}
	return a.w.Write(p)
}

func (a *attachmentWriter) begin() {
	a.wrote = true
	a.w.Header().Set("Content-Type", a.contentType)
	a.w.Header().Set("Content-Disposition",
		`attachment; filename="`+strings.ReplaceAll(a.filename, `"`, "_")+`"`)
	a.w.WriteHeader(http.StatusOK)
}

func (a *attachmentWriter) started() bool {
	return a.wrote
}
