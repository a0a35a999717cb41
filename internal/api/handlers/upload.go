package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	// MaxStatementSize is the largest accepted statement upload.
	MaxStatementSize = 10 << 20

	// StatementField is the multipart field carrying the CSV file.
	StatementField = "statement"
)

// uploadError carries the HTTP status for a rejected upload.
type uploadError struct {
	status  int
	message string
}

func (e *uploadError) Error() string { return e.message }

// statementUpload is a CSV file read from a multipart request.
type statementUpload struct {
	Filename string
	Data     []byte
}

// readStatementUpload parses the multipart form and returns the CSV file in
// the "statement" field. Callers read other form values from r afterwards.
func readStatementUpload(w http.ResponseWriter, r *http.Request) (*statementUpload, error) {
	// Leave headroom for the multipart envelope and the other form fields.
	r.Body = http.MaxBytesReader(w, r.Body, MaxStatementSize+1<<20)

	if err := r.ParseMultipartForm(MaxStatementSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &uploadError{status: http.StatusRequestEntityTooLarge, message: "File too large (max 10MB)"}
		}
		return nil, &uploadError{status: http.StatusBadRequest, message: "Please upload a CSV file"}
	}

	file, header, err := r.FormFile(StatementField)
	if err != nil {
		return nil, &uploadError{status: http.StatusBadRequest, message: "Please upload a CSV file"}
	}
	defer file.Close()

	if !isCSV(header) {
		return nil, &uploadError{status: http.StatusBadRequest, message: "Only CSV files are allowed"}
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxStatementSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > MaxStatementSize {
		return nil, &uploadError{status: http.StatusRequestEntityTooLarge, message: "File too large (max 10MB)"}
	}

	return &statementUpload{Filename: header.Filename, Data: data}, nil
}

func isCSV(header *multipart.FileHeader) bool {
	if strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		return true
	}
	contentType := strings.ToLower(header.Header.Get("Content-Type"))
	return strings.HasPrefix(contentType, "text/csv")
}

// uploadStatus maps a readStatementUpload error to a status and message.
func uploadStatus(err error) (int, string) {
	var ue *uploadError
	if errors.As(err, &ue) {
		return ue.status, ue.message
	}
	return http.StatusBadRequest, err.Error()
}
