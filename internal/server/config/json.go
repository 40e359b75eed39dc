package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/taskio/internal/flagx"
	"github.com/dmitrijs2005/taskio/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "1h" strings and integer nanoseconds are accepted. Zero values leave
// the corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	LogLevel                     string         `json:"log_level"`
	BcryptCost                   int            `json:"bcrypt_cost"`
}

// parseJson overlays values from the JSON file named by -c/-config (or
// $TASKIO_CONFIG). Without a path nothing changes. An unreadable file or
// invalid JSON panics: the server must not start half-configured.
func parseJson(config *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
