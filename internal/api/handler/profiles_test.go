package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProfiles_Filters(t *testing.T) {
	p := &models.Profile{ID: uuid.New(), LinkedInURL: "https://linkedin.com/in/sarah", Name: "Sarah Johnson", CurrentCompany: "Google"}
	profiles := &mockProfiles{profiles: map[uuid.UUID]*models.Profile{p.ID: p}}
	jobID := uuid.New()

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/profiles?q=%20sarah%20&industry=Technology&location=Mountain+View&company=Google&job_id="+jobID.String()+"&limit=500", nil)
	w := serve("/api/v1/profiles", http.MethodGet, NewListProfilesHandler(profiles), req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "sarah", profiles.filter.Query)
	assert.Equal(t, "Technology", profiles.filter.Industry)
	assert.Equal(t, "Mountain View", profiles.filter.Location)
	assert.Equal(t, "Google", profiles.filter.Company)
	require.NotNil(t, profiles.filter.JobID)
	assert.Equal(t, jobID, *profiles.filter.JobID)
	assert.Equal(t, 100, profiles.filter.Limit)
	assert.Equal(t, 1, profiles.filter.Page)

	var got []models.Profile
	decodeData(t, w, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "Sarah Johnson", got[0].Name)
}

func TestListProfiles_BadJobID(t *testing.T) {
	profiles := &mockProfiles{}
	w := serve("/api/v1/profiles", http.MethodGet, NewListProfilesHandler(profiles),
		httptest.NewRequest(http.MethodGet, "/api/v1/profiles?job_id=nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListProfiles_StoreError(t *testing.T) {
	profiles := &mockProfiles{err: errors.New("connection refused")}
	w := serve("/api/v1/profiles", http.MethodGet, NewListProfilesHandler(profiles),
		httptest.NewRequest(http.MethodGet, "/api/v1/profiles", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetProfile(t *testing.T) {
	p := &models.Profile{ID: uuid.New(), LinkedInURL: "https://linkedin.com/in/mchen", Name: "Michael Chen"}
	profiles := &mockProfiles{profiles: map[uuid.UUID]*models.Profile{p.ID: p}}

	w := serve("/api/v1/profiles/{profileID}", http.MethodGet, NewGetProfileHandler(profiles),
		httptest.NewRequest(http.MethodGet, "/api/v1/profiles/"+p.ID.String(), nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got models.Profile
	decodeData(t, w, &got)
	assert.Equal(t, "Michael Chen", got.Name)

	w = serve("/api/v1/profiles/{profileID}", http.MethodGet, NewGetProfileHandler(profiles),
		httptest.NewRequest(http.MethodGet, "/api/v1/profiles/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve("/api/v1/profiles/{profileID}", http.MethodGet, NewGetProfileHandler(profiles),
		httptest.NewRequest(http.MethodGet, "/api/v1/profiles/xyz", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
