package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/internal/api/response"
	"github.com/kiranshivaraju/alumnitrack/internal/store"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// NewListProfilesHandler returns an http.HandlerFunc for GET /api/v1/profiles.
// q searches name, company and title; industry, location and company narrow
// the result; job_id restricts it to profiles last written by one job.
func NewListProfilesHandler(profiles ProfileReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, err := pageParams(r)
		if err != nil {
			response.ValidationError(w, err.Error())
			return
		}

		q := r.URL.Query()
		filter := store.ProfileFilter{
			Query:    strings.TrimSpace(q.Get("q")),
			Industry: strings.TrimSpace(q.Get("industry")),
			Location: strings.TrimSpace(q.Get("location")),
			Company:  strings.TrimSpace(q.Get("company")),
			Page:     page,
			Limit:    limit,
		}
		if v := q.Get("job_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				response.ValidationError(w, "job_id must be a valid UUID")
				return
			}
			filter.JobID = &id
		}

		list, total, err := profiles.ListProfiles(r.Context(), filter)
		if err != nil {
			slog.Error("failed to list profiles", "error", err)
			response.InternalError(w)
			return
		}
		if list == nil {
			list = []*models.Profile{}
		}
		response.Collection(w, list, response.NewPaginationMeta(page, limit, total))
	}
}

// NewGetProfileHandler returns an http.HandlerFunc for
// GET /api/v1/profiles/{profileID}.
func NewGetProfileHandler(profiles ProfileReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(r, "profileID")
		if !ok {
			response.ValidationError(w, "profileID must be a valid UUID")
			return
		}

		p, err := profiles.GetProfile(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "Profile not found")
			return
		}
		if err != nil {
			slog.Error("failed to load profile", "profile_id", id, "error", err)
			response.InternalError(w)
			return
		}
		response.JSON(w, p)
	}
}
