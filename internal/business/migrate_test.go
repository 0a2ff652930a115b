package business

import (
	"testing"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"

	"github.com/openkcm/api-client/internal/config"
)

func TestMigrateMain_InvalidDatabaseConfig(t *testing.T) {
	tests := []struct {
		name     string
		database config.Database
	}{
		{
			name: "invalid host ref",
			database: config.Database{
				Host:     commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/file"}},
				Port:     "5432",
				Name:     "testdb",
				User:     commoncfg.SourceRef{Source: "embedded", Value: "user"},
				Password: commoncfg.SourceRef{Source: "embedded", Value: "pass"},
			},
		},
		{
			name: "invalid user ref",
			database: config.Database{
				Host:     commoncfg.SourceRef{Source: "embedded", Value: "localhost"},
				Port:     "5432",
				Name:     "testdb",
				User:     commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/file"}},
				Password: commoncfg.SourceRef{Source: "embedded", Value: "pass"},
			},
		},
		{
			name: "invalid password ref",
			database: config.Database{
				Host:     commoncfg.SourceRef{Source: "embedded", Value: "localhost"},
				Port:     "5432",
				Name:     "testdb",
				User:     commoncfg.SourceRef{Source: "embedded", Value: "user"},
				Password: commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/file"}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{
				Storage: config.Storage{Type: config.StoragePostgres, Database: tc.database},
			}

			err := MigrateMain(t.Context(), cfg)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "making connection string from config")
		})
	}
}

func TestMigrateMain_NotPostgres(t *testing.T) {
	cfg := &config.Config{Storage: config.Storage{Type: config.StorageFile}}

	err := MigrateMain(t.Context(), cfg)
	assert.ErrorContains(t, err, "has no migrations")
}

func TestPurgeMain(t *testing.T) {
	t.Run("nothing to purge for other backends", func(t *testing.T) {
		cfg := &config.Config{Storage: config.Storage{Type: config.StorageRedis}}

		assert.NoError(t, PurgeMain(t.Context(), cfg))
	})

	t.Run("invalid database config", func(t *testing.T) {
		cfg := &config.Config{
			Storage: config.Storage{
				Type: config.StoragePostgres,
				Database: config.Database{
					Host: commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/file"}},
					Name: "testdb",
				},
			},
		}

		err := PurgeMain(t.Context(), cfg)
		assert.ErrorContains(t, err, "failed to initialise the storage")
	})
}
