package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/secrets"
)

// dbSecret is the RDS-managed secret shape.
type dbSecret struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"dbname"`
}

// ResolveDSN returns the Postgres DSN: DATABASE_URL verbatim when set,
// otherwise the DB secret resolved through the cache. DB_NAME overrides the
// database named in the secret.
func (c *Config) ResolveDSN(ctx context.Context, cache *secrets.Cache) (string, error) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	if err := c.RequireDB(); err != nil {
		return "", err
	}

	raw, err := cache.Get(ctx, c.DBSecretARN)
	if err != nil {
		return "", fmt.Errorf("resolve db secret: %w", err)
	}
	var sec dbSecret
	if err := json.Unmarshal([]byte(raw), &sec); err != nil {
		return "", fmt.Errorf("misconfigured: db secret is not JSON: %w", err)
	}
	if sec.Host == "" || sec.Username == "" {
		return "", fmt.Errorf("misconfigured: db secret missing host or username")
	}
	if sec.Port == 0 {
		sec.Port = 5432
	}
	name := c.DBName
	if name == "" {
		name = sec.DBName
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(sec.Username, sec.Password),
		Host:   fmt.Sprintf("%s:%d", sec.Host, sec.Port),
		Path:   "/" + name,
	}
	q := url.Values{}
	q.Set("sslmode", "require")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
