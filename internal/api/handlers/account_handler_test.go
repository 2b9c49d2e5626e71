package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postcadence/configs"
	"github.com/maheshrc27/postcadence/internal/service"
	"github.com/maheshrc27/postcadence/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkedInProfileHandler(t *testing.T) {
	linkedinAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/userinfo" {
			http.NotFound(w, r)
			return
		}
		if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != "good-token" {
			http.Error(w, `{"message":"expired"}`, http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"sub":"abc123","name":"Brand Page","email":"ops@example.com"}`))
	}))
	t.Cleanup(linkedinAPI.Close)

	retry := service.HTTPRetryConfig{MaxRetries: 0, BaseDelay: 1, MaxDelay: 1}
	accounts := []config.LinkedInAccount{
		{Name: "brand", AccessToken: "good-token"},
		{Name: "stale", AccessToken: "old-token"},
	}
	linkedin := service.NewLinkedInService(linkedinAPI.URL, accounts, service.NewImageFetcher(linkedinAPI.Client(), retry), retry, false)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	h := NewAccountHandler(linkedin)
	app.Get("/api/accounts/linkedin/:name/profile", h.LinkedInProfile)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/accounts/linkedin/brand/profile", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, _ := io.ReadAll(resp.Body)
	var profile transfer.LinkedInProfile
	require.NoError(t, json.Unmarshal(data, &profile))
	assert.Equal(t, transfer.LinkedInProfile{
		Account: "brand",
		URN:     "urn:li:person:abc123",
		Name:    "Brand Page",
		Email:   "ops@example.com",
	}, profile)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/accounts/linkedin/stale/profile", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/accounts/linkedin/unknown/profile", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
