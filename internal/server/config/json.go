package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dotkom/vengeful/internal/flagx"
	"github.com/dotkom/vengeful/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "10m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files; after unmarshalling its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	OWBaseURL                    string         `json:"ow_base_url"`
	OWAPIToken                   string         `json:"ow_api_token"`
	SyncInterval                 timex.Duration `json:"sync_interval"`
	MaxPunishmentTypes           int            `json:"max_punishment_types"`
	MaxGroupsPerUser             int            `json:"max_groups_per_user"`
	MaxActivePunishmentsPerGroup int            `json:"max_active_punishments_per_group"`
	MaxGroupMembers              int            `json:"max_group_members"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config instance. If no file is named,
// nothing is loaded; if the file cannot be read or contains invalid JSON,
// the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.OWBaseURL = c.OWBaseURL
	config.OWAPIToken = c.OWAPIToken
	config.SyncInterval = time.Duration(c.SyncInterval.Duration)
	config.MaxPunishmentTypes = c.MaxPunishmentTypes
	config.MaxGroupsPerUser = c.MaxGroupsPerUser
	config.MaxActivePunishmentsPerGroup = c.MaxActivePunishmentsPerGroup
	config.MaxGroupMembers = c.MaxGroupMembers
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
