package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"

	"roomshare/internal/domain"
)

// Scopes requested for the service account: spreadsheet read/write and
// drive read/write.
var Scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive",
}

// CredentialSource holds service-account key material, inline or on disk.
// Inline JSON wins when both are set.
type CredentialSource struct {
	JSON string
	Path string
}

type serviceAccountKey struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// LoadCredentials validates the key and returns a JWT config for the
// spreadsheet scopes. The key is kept in memory only.
func LoadCredentials(src CredentialSource) (*jwt.Config, error) {
	field := "GOOGLE_CREDENTIALS_JSON"
	raw := []byte(src.JSON)
	if src.JSON == "" {
		field = "PRIVATE_KEY_PATH"
		if src.Path == "" {
			return nil, &domain.ConfigError{Field: "GOOGLE_CREDENTIALS_JSON or PRIVATE_KEY_PATH"}
		}
		b, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, &domain.ConfigError{Field: field, Err: err}
		}
		raw = b
	}

	var key serviceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, &domain.ConfigError{Field: field, Err: errors.New("key is not valid JSON")}
	}
	switch {
	case key.Type != "" && key.Type != "service_account":
		return nil, &domain.ConfigError{Field: field, Err: errors.New("key type must be service_account")}
	case key.ClientEmail == "":
		return nil, &domain.ConfigError{Field: field, Err: errors.New("client_email missing")}
	case key.PrivateKey == "":
		return nil, &domain.ConfigError{Field: field, Err: errors.New("private_key missing")}
	}

	conf, err := google.JWTConfigFromJSON(raw, Scopes...)
	if err != nil {
		return nil, &domain.ConfigError{Field: field, Err: err}
	}
	return conf, nil
}

// NewHTTPClient returns an authorized client. The timeout applies to token
// refreshes as well as API calls.
func NewHTTPClient(ctx context.Context, conf *jwt.Config, timeout time.Duration) *http.Client {
	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	hc := conf.Client(ctx)
	hc.Timeout = timeout
	return hc
}
