package config

import (
	"testing"
	"time"

	"github.com/maheshrc27/postcadence/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, []int{9, 16, 20}, cfg.SlotHours)
	assert.Equal(t, "UTC", cfg.SlotTimezone)
	assert.Equal(t, 3650, cfg.SlotHorizonDays)
	assert.Equal(t, 5*time.Minute, cfg.ScanInterval)
	assert.Equal(t, "https://api.ideogram.ai/generate", cfg.Ideogram.APIURL)
	assert.False(t, cfg.PublishConcurrently)
}

func TestLoadConfigAccountsAndHours(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	t.Setenv("SLOT_HOURS", "20,9,9,16")
	t.Setenv("SLOT_TIMEZONE", "Europe/Berlin")
	t.Setenv("LINKEDIN_ACCOUNTS", `[{"name":"brand","access_token":"tok"},{"access_token":"tok2"}]`)
	t.Setenv("TWITTER_ACCOUNTS", `[{"api_key":"k","api_secret":"s","access_token":"a","access_token_secret":"b"}]`)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []int{9, 16, 20}, cfg.SlotHours)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	require.Len(t, cfg.LinkedInAccounts, 2)
	assert.Equal(t, "brand", cfg.LinkedInAccounts[0].Name)
	assert.Equal(t, "account2", cfg.LinkedInAccounts[1].Name)
	require.Len(t, cfg.TwitterAccounts, 1)
	assert.Equal(t, "account1", cfg.TwitterAccounts[0].Name)
	assert.Equal(t, "b", cfg.TwitterAccounts[0].AccessTokenSecret)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"hour out of range", "SLOT_HOURS", "9,24"},
		{"unknown timezone", "SLOT_TIMEZONE", "Mars/Olympus"},
		{"duplicate account", "LINKEDIN_ACCOUNTS", `[{"name":"x"},{"name":"x"}]`},
		{"malformed accounts", "TWITTER_ACCOUNTS", `{not json`},
		{"undecryptable credential", "IDEOGRAM_API_KEY", "enc:abc"},
		{"missing secret key", "SECRET_KEY", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SECRET_KEY", "test-secret")
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigDecryptsCredentials(t *testing.T) {
	sealed, err := utils.Encrypt([]byte("plain-api-key"), utils.DeriveKey("top-secret"))
	require.NoError(t, err)

	t.Setenv("SECRET_KEY", "top-secret")
	t.Setenv("IDEOGRAM_API_KEY", "enc:"+sealed)
	t.Setenv("LINKEDIN_ACCOUNTS", `[{"name":"a","access_token":"enc:`+sealed+`"}]`)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "plain-api-key", cfg.Ideogram.APIKey)
	assert.Equal(t, "plain-api-key", cfg.LinkedInAccounts[0].AccessToken)
}
