// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	Storage  Storage  `yaml:"storage"`
	Provider Provider `yaml:"provider"`
	Session  Session  `yaml:"session"`
	API      API      `yaml:"api"`
	Callback Callback `yaml:"callback"`

	// TelemetryEnabled initialises OpenTelemetry for commands that reach the network.
	TelemetryEnabled bool `yaml:"telemetryEnabled"`
}

type StorageType string

const (
	StorageMemory   StorageType = "memory"
	StorageFile     StorageType = "file"
	StorageKeyring  StorageType = "keyring"
	StorageValKey   StorageType = "valkey"
	StorageRedis    StorageType = "redis"
	StoragePostgres StorageType = "postgres"
)

var storageTypes = []StorageType{StorageMemory, StorageFile, StorageKeyring, StorageValKey, StorageRedis, StoragePostgres}

type Storage struct {
	Type     StorageType `yaml:"type" default:"file"`
	File     File        `yaml:"file"`
	Keyring  Keyring     `yaml:"keyring"`
	ValKey   ValKey      `yaml:"valkey"`
	Redis    Redis       `yaml:"redis"`
	Database Database    `yaml:"database"`
}

type File struct {
	// Dir defaults to the user configuration directory.
	Dir string `yaml:"dir"`
}

type Keyring struct {
	Service string `yaml:"service" default:"api-client"`
}

type Database struct {
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
}

type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix" default:"api-client"`
}

type Redis struct {
	Addrs    []string            `yaml:"addrs"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	DB       int                 `yaml:"db"`
	Prefix   string              `yaml:"prefix" default:"api-client"`
}

type Provider struct {
	// IssuerURL is used for discovery when AuthorizationEndpoint is empty.
	IssuerURL             string `yaml:"issuerURL"`
	AuthorizationEndpoint string `yaml:"authorizationEndpoint"`
	TokenEndpoint         string `yaml:"tokenEndpoint"`
	JWKSURI               string `yaml:"jwksURI"`

	ResponseType  string `yaml:"responseType" default:"code"`
	Scope         string `yaml:"scope" default:"openid profile email"`
	VerifyIDToken bool   `yaml:"verifyIDToken" default:"true"`

	AdditionalQueryParametersAuthorize map[string]string `yaml:"additionalQueryParametersAuthorize"`
}

type Session struct {
	RequestTTL time.Duration `yaml:"requestTTL" default:"10m"`
}

type API struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout" default:"30s"`
}

type Callback struct {
	Address string        `yaml:"address" default:"127.0.0.1:8976"`
	Path    string        `yaml:"path" default:"/callback"`
	Timeout time.Duration `yaml:"timeout" default:"5m"`
}

func (c *Config) Validate() error {
	if !slices.Contains(storageTypes, c.Storage.Type) {
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	switch c.Storage.Type {
	case StorageRedis:
		if len(c.Storage.Redis.Addrs) == 0 {
			return fmt.Errorf("storage type %q requires at least one address", c.Storage.Type)
		}
	case StoragePostgres:
		if c.Storage.Database.Name == "" {
			return fmt.Errorf("storage type %q requires a database name", c.Storage.Type)
		}
	}

	if c.Provider.IssuerURL == "" && c.Provider.AuthorizationEndpoint == "" {
		return fmt.Errorf("provider requires an issuer URL or an authorization endpoint")
	}

	if c.Provider.VerifyIDToken && c.Provider.IssuerURL == "" {
		return fmt.Errorf("verifying id tokens requires an issuer URL")
	}

	return nil
}
