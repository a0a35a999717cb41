package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/gcsuploader"
	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/pipeline"
)

// StatementService is the ingestion surface used by the handlers.
type StatementService interface {
	PreviewImport(ctx context.Context, userID string, csv []byte) (*pipeline.Preview, error)
	RunImport(ctx context.Context, userID string, csv []byte, opts pipeline.ImportOptions) (*pipeline.ImportResult, error)
}

// StatementsHandler handles statement preview and import endpoints.
type StatementsHandler struct {
	service   StatementService
	publisher jobs.Publisher
	storage   gcsuploader.StorageService
	bucket    string
	defaults  pipeline.ImportOptions
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler. publisher and
// storage may be nil, which disables the matching import-job paths.
func NewStatementsHandler(service StatementService, publisher jobs.Publisher, storage gcsuploader.StorageService, bucket string, defaults pipeline.ImportOptions, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		service:   service,
		publisher: publisher,
		storage:   storage,
		bucket:    bucket,
		defaults:  defaults,
		log:       log,
	}
}

// Preview handles POST /api/statements/preview
func (h *StatementsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	upload, err := readStatementUpload(w, r)
	if err != nil {
		status, message := uploadStatus(err)
		middleware.WriteError(w, status, message)
		return
	}

	preview, err := h.service.PreviewImport(r.Context(), userID, upload.Data)
	if err != nil {
		h.writeServiceError(w, err, userID, "Failed to preview statement")
		return
	}

	middleware.WriteSuccess(w, http.StatusOK,
		fmt.Sprintf("Parsed %d transactions from CSV", preview.Summary.Total), preview)
}

// writeServiceError reports malformed statements as 400 with the parse detail.
// Anything else is a server-side failure and only the generic message leaves
// the process.
func (h *StatementsHandler) writeServiceError(w http.ResponseWriter, err error, userID, message string) {
	if pipeline.IsMalformedInput(err) {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("Rejected malformed statement")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Error().Err(err).Str("user_id", userID).Msg(message)
	middleware.WriteError(w, http.StatusInternalServerError, message)
}

// Import handles POST /api/statements/import
func (h *StatementsHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	upload, err := readStatementUpload(w, r)
	if err != nil {
		status, message := uploadStatus(err)
		middleware.WriteError(w, status, message)
		return
	}

	opts := h.importOptions(r.FormValue("skipDuplicates"), r.FormValue("currency"))

	result, err := h.service.RunImport(r.Context(), userID, upload.Data, opts)
	if err != nil {
		h.writeServiceError(w, err, userID, "Failed to import statement")
		return
	}

	h.log.Info().
		Str("user_id", userID).
		Str("filename", upload.Filename).
		Int("imported", result.Summary.Imported).
		Int("duplicates", result.Summary.Skipped).
		Int("errored", result.Summary.Errored).
		Msg("Statement imported")

	middleware.WriteSuccess(w, http.StatusOK,
		fmt.Sprintf("Imported %d of %d transactions", result.Summary.Imported, result.Summary.Total), result)
}

// EnqueueImport handles POST /api/statements/import-jobs. It accepts either a
// JSON body naming a gs:// URI or a multipart upload, which is first stored
// in the configured bucket.
func (h *StatementsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Asynchronous imports are not enabled")
		return
	}

	var (
		gcsURI string
		opts   pipeline.ImportOptions
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if h.storage == nil || h.bucket == "" {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Statement storage is not configured")
			return
		}

		upload, err := readStatementUpload(w, r)
		if err != nil {
			status, message := uploadStatus(err)
			middleware.WriteError(w, status, message)
			return
		}

		object := gcsuploader.StatementObjectName(userID, uuid.NewString(), upload.Filename, time.Now())
		gcsURI, err = h.storage.Upload(r.Context(), h.bucket, object, bytes.NewReader(upload.Data))
		if err != nil {
			h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to store statement")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to store statement")
			return
		}
		opts = h.importOptions(r.FormValue("skipDuplicates"), r.FormValue("currency"))
	} else {
		var req struct {
			GCSURI         string `json:"gcs_uri"`
			SkipDuplicates *bool  `json:"skip_duplicates"`
			Currency       string `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if _, _, err := gcsuploader.ParseGCSURI(req.GCSURI); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "gcs_uri must be a gs://bucket/object URI")
			return
		}
		gcsURI = req.GCSURI
		opts = h.importOptions("", req.Currency)
		if req.SkipDuplicates != nil {
			opts.SkipDuplicates = *req.SkipDuplicates
		}
	}

	job := &jobs.ImportStatementJob{
		JobID:          uuid.NewString(),
		UserID:         userID,
		GCSURI:         gcsURI,
		SkipDuplicates: opts.SkipDuplicates,
		Currency:       opts.DefaultCurrency,
	}
	jobID := job.JobID

	if err := h.publisher.PublishImportStatement(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", jobID).Str("user_id", userID).Str("gcs_uri", gcsURI).Msg("Import job enqueued")

	middleware.WriteSuccess(w, http.StatusAccepted, "Import job enqueued", map[string]string{
		"job_id":  jobID,
		"gcs_uri": gcsURI,
		"status":  string(jobs.JobStatusPending),
	})
}

// importOptions applies form values over the configured defaults. Only the
// literal "false" disables duplicate skipping.
func (h *StatementsHandler) importOptions(skipDuplicates, currency string) pipeline.ImportOptions {
	opts := h.defaults
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = pipeline.DefaultCurrency
	}
	if skipDuplicates != "" {
		opts.SkipDuplicates = skipDuplicates != "false"
	}
	if currency = strings.TrimSpace(currency); currency != "" {
		opts.DefaultCurrency = strings.ToUpper(currency)
	}
	return opts
}
