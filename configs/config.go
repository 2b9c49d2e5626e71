package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/maheshrc27/postcadence/pkg/utils"
)

const encryptedPrefix = "enc:"

type R2 struct {
	AccountID  string `env:"R2_ACCOUNT_ID"`
	AccessKey  string `env:"R2_ACCESS_KEY"`
	SecretKey  string `env:"R2_SECRET_KEY"`
	BucketName string `env:"R2_BUCKET_NAME"`
	PublicURL  string `env:"R2_PUBLIC_URL"`
}

type Ideogram struct {
	APIKey string `env:"IDEOGRAM_API_KEY"`
	APIURL string `env:"IDEOGRAM_API_URL" envDefault:"https://api.ideogram.ai/generate"`
}

// LinkedInAccount is one member identity posted to with a bearer token.
type LinkedInAccount struct {
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

// TwitterAccount holds the OAuth1 user-context credentials of one account.
type TwitterAccount struct {
	Name              string `json:"name"`
	APIKey            string `json:"api_key"`
	APISecret         string `json:"api_secret"`
	AccessToken       string `json:"access_token"`
	AccessTokenSecret string `json:"access_token_secret"`
}

// LinkedInAccounts is parsed from a JSON list in LINKEDIN_ACCOUNTS.
type LinkedInAccounts []LinkedInAccount

func (a *LinkedInAccounts) UnmarshalText(text []byte) error {
	return json.Unmarshal(text, (*[]LinkedInAccount)(a))
}

// TwitterAccounts is parsed from a JSON list in TWITTER_ACCOUNTS.
type TwitterAccounts []TwitterAccount

func (a *TwitterAccounts) UnmarshalText(text []byte) error {
	return json.Unmarshal(text, (*[]TwitterAccount)(a))
}

type Config struct {
	Port        string `env:"PORT" envDefault:"3000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresURI string `env:"POSTGRES_URI"`
	RedisURI    string `env:"REDIS_URI" envDefault:"localhost:6379"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	SecretKey   string `env:"SECRET_KEY,notEmpty"`
	CookieName  string `env:"COOKIE_NAME" envDefault:"postcadence_session"`
	CronSecret  string `env:"CRON_SECRET"`

	SlotHours       []int         `env:"SLOT_HOURS" envSeparator:"," envDefault:"9,16,20"`
	SlotTimezone    string        `env:"SLOT_TIMEZONE" envDefault:"UTC"`
	SlotHorizonDays int           `env:"SLOT_HORIZON_DAYS" envDefault:"3650"`
	ScanInterval    time.Duration `env:"SCAN_INTERVAL" envDefault:"5m"`

	PublishConcurrently bool `env:"PUBLISH_CONCURRENTLY" envDefault:"false"`
	HTTPMaxRetries      int  `env:"HTTP_MAX_RETRIES" envDefault:"2"`

	LinkedInAPIURL   string `env:"LINKEDIN_API_URL" envDefault:"https://api.linkedin.com"`
	TwitterAPIURL    string `env:"TWITTER_API_URL" envDefault:"https://api.twitter.com"`
	TwitterUploadURL string `env:"TWITTER_UPLOAD_URL" envDefault:"https://upload.twitter.com"`

	LinkedInAccounts LinkedInAccounts `env:"LINKEDIN_ACCOUNTS"`
	TwitterAccounts  TwitterAccounts  `env:"TWITTER_ACCOUNTS"`

	Ideogram Ideogram
	R2       R2
}

// LoadConfig reads the process environment. SECRET_KEY is mandatory since it
// signs operator tokens. Credentials carrying the "enc:" prefix are decrypted
// with it.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.decryptCredentials(); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location returns the timezone candidate slot hours are expressed in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.SlotTimezone)
}

func (c *Config) normalize() error {
	if len(c.SlotHours) == 0 {
		return errors.New("SLOT_HOURS must name at least one hour")
	}
	for _, h := range c.SlotHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("slot hour %d out of range 0..23", h)
		}
	}
	slices.Sort(c.SlotHours)
	c.SlotHours = slices.Compact(c.SlotHours)

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid SLOT_TIMEZONE %q: %w", c.SlotTimezone, err)
	}
	if c.SlotHorizonDays <= 0 {
		c.SlotHorizonDays = 3650
	}
	if c.HTTPMaxRetries < 0 {
		c.HTTPMaxRetries = 0
	}

	seen := map[string]struct{}{}
	for i, acc := range c.LinkedInAccounts {
		if acc.Name == "" {
			c.LinkedInAccounts[i].Name = fmt.Sprintf("account%d", i+1)
		}
		if _, dup := seen[c.LinkedInAccounts[i].Name]; dup {
			return fmt.Errorf("duplicate linkedin account name %q", c.LinkedInAccounts[i].Name)
		}
		seen[c.LinkedInAccounts[i].Name] = struct{}{}
	}

	clear(seen)
	for i, acc := range c.TwitterAccounts {
		if acc.Name == "" {
			c.TwitterAccounts[i].Name = fmt.Sprintf("account%d", i+1)
		}
		if _, dup := seen[c.TwitterAccounts[i].Name]; dup {
			return fmt.Errorf("duplicate twitter account name %q", c.TwitterAccounts[i].Name)
		}
		seen[c.TwitterAccounts[i].Name] = struct{}{}
	}
	return nil
}

func (c *Config) decryptCredentials() error {
	fields := []*string{&c.Ideogram.APIKey, &c.R2.SecretKey}
	for i := range c.LinkedInAccounts {
		fields = append(fields, &c.LinkedInAccounts[i].AccessToken)
	}
	for i := range c.TwitterAccounts {
		acc := &c.TwitterAccounts[i]
		fields = append(fields, &acc.APIKey, &acc.APISecret, &acc.AccessToken, &acc.AccessTokenSecret)
	}

	for _, f := range fields {
		if !strings.HasPrefix(*f, encryptedPrefix) {
			continue
		}
		plain, err := utils.Decrypt(strings.TrimPrefix(*f, encryptedPrefix), utils.DeriveKey(c.SecretKey))
		if err != nil {
			return fmt.Errorf("decrypt credential: %w", err)
		}
		*f = plain
	}
	return nil
}
