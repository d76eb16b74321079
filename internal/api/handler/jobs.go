package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/alumnitrack/internal/api/response"
	"github.com/kiranshivaraju/alumnitrack/internal/csvimport"
	"github.com/kiranshivaraju/alumnitrack/internal/store"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

const (
	maxUploadBytes  = 10 << 20
	defaultFilename = "upload.csv"
)

type createJobRequest struct {
	Filename string          `json:"filename"`
	Rows     []models.JobRow `json:"rows"`
}

// NewCreateJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
// It accepts either a multipart upload with a "file" field or a JSON body of
// already parsed rows.
func NewCreateJobHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		var (
			filename string
			rows     []models.JobRow
		)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "multipart/form-data":
			file, header, err := r.FormFile("file")
			if err != nil {
				response.ValidationError(w, "multipart field \"file\" is required")
				return
			}
			defer file.Close()

			rows, err = csvimport.Parse(file)
			if err != nil {
				writeCSVError(w, err)
				return
			}
			filename = header.Filename
		default:
			var req createJobRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
				return
			}
			filename, rows = req.Filename, req.Rows
		}

		if strings.TrimSpace(filename) == "" {
			filename = defaultFilename
		}

		job, err := jobs.CreateJob(r.Context(), filename, rows)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		response.Created(w, job)
	}
}

func writeCSVError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, csvimport.ErrEmptyFile), errors.Is(err, csvimport.ErrMissingURLColumn):
		response.ValidationError(w, err.Error())
	default:
		response.Error(w, http.StatusBadRequest, "INVALID_CSV", err.Error(), nil)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
func NewListJobsHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, err := pageParams(r)
		if err != nil {
			response.ValidationError(w, err.Error())
			return
		}

		list, total, err := jobs.ListJobs(r.Context(), store.JobFilter{
			Statuses: splitList(r.URL.Query().Get("status")),
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		if list == nil {
			list = []*models.ScrapingJob{}
		}
		response.Collection(w, list, response.NewPaginationMeta(page, limit, total))
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := pathUUID(r, "jobID")
		if !ok {
			response.ValidationError(w, "jobID must be a valid UUID")
			return
		}

		job, err := jobs.GetJob(r.Context(), jobID)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewProcessJobHandler returns an http.HandlerFunc for
// POST /api/v1/jobs/{jobID}/process. Processing continues in the background;
// the response only acknowledges the request.
func NewProcessJobHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := pathUUID(r, "jobID")
		if !ok {
			response.ValidationError(w, "jobID must be a valid UUID")
			return
		}

		if err := jobs.Trigger(r.Context(), jobID); err != nil {
			writeJobError(w, r, err)
			return
		}

		job, err := jobs.GetJob(r.Context(), jobID)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		response.Accepted(w, job)
	}
}

// NewListQueueHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{jobID}/queue.
func NewListQueueHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := pathUUID(r, "jobID")
		if !ok {
			response.ValidationError(w, "jobID must be a valid UUID")
			return
		}

		items, err := jobs.ListQueueItems(r.Context(), jobID, r.URL.Query().Get("status"))
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		if items == nil {
			items = []*models.QueueItem{}
		}
		response.JSON(w, items)
	}
}

// NewRetryJobHandler returns an http.HandlerFunc for
// POST /api/v1/jobs/{jobID}/retry.
func NewRetryJobHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := pathUUID(r, "jobID")
		if !ok {
			response.ValidationError(w, "jobID must be a valid UUID")
			return
		}

		job, err := jobs.RetryFailed(r.Context(), jobID)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		response.Created(w, job)
	}
}

// NewJobFailuresHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{jobID}/failures.
func NewJobFailuresHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := pathUUID(r, "jobID")
		if !ok {
			response.ValidationError(w, "jobID must be a valid UUID")
			return
		}

		groups, err := jobs.FailureDigest(r.Context(), jobID)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		if groups == nil {
			groups = []models.FailureGroup{}
		}
		response.JSON(w, groups)
	}
}
