package business

import (
	"context"
	"fmt"
	"net/http"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/redis/go-redis/v9"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/api-client/internal/audit"
	"github.com/openkcm/api-client/internal/config"
	"github.com/openkcm/api-client/pkg/api"
	"github.com/openkcm/api-client/pkg/storage"
	"github.com/openkcm/api-client/pkg/storage/file"
	"github.com/openkcm/api-client/pkg/storage/keyring"
	"github.com/openkcm/api-client/pkg/storage/memory"
	storagesql "github.com/openkcm/api-client/pkg/storage/postgres"
	storageredis "github.com/openkcm/api-client/pkg/storage/redis"
	storagevalkey "github.com/openkcm/api-client/pkg/storage/valkey"
)

func initClient(ctx context.Context, cfg *config.Config) (_ *api.Client, closeFn func(), _ error) {
	store, closeFn, err := initStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialising the storage: %w", err)
	}

	opts := []api.Option{
		api.WithProvider(api.ProviderConfig{
			IssuerURL:             cfg.Provider.IssuerURL,
			AuthorizationEndpoint: cfg.Provider.AuthorizationEndpoint,
			TokenEndpoint:         cfg.Provider.TokenEndpoint,
			JWKSURI:               cfg.Provider.JWKSURI,
		}),
		api.WithResponseType(cfg.Provider.ResponseType),
		api.WithScope(cfg.Provider.Scope),
		api.WithAuthParameters(cfg.Provider.AdditionalQueryParametersAuthorize),
		api.WithRequestTTL(cfg.Session.RequestTTL),
		api.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		api.WithAPIBaseURL(cfg.API.BaseURL),
	}

	if cfg.Provider.VerifyIDToken {
		opts = append(opts, api.WithIDTokenVerification())
	}

	if cfg.Audit.Endpoint != "" {
		auditLogger, err := audit.NewLogger(&cfg.Audit, cfg.Application.Name)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("creating audit logger: %w", err)
		}

		opts = append(opts, api.WithAuditor(auditLogger))
	}

	client, err := api.New(store, opts...)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("creating api client: %w", err)
	}

	return client, closeFn, nil
}

func initStore(ctx context.Context, cfg *config.Config) (_ storage.Store, closeFn func(), _ error) {
	noop := func() {}

	switch cfg.Storage.Type {
	case config.StorageMemory:
		slogctx.Warn(ctx, "Using in-memory storage, the session ends with the process")
		return storagememory.New(), noop, nil
	case config.StorageFile:
		dir := cfg.Storage.File.Dir
		if dir == "" {
			dir = storagefile.DefaultDir()
		}

		return storagefile.New(dir), noop, nil
	case config.StorageKeyring:
		if !storagekeyring.Available(cfg.Storage.Keyring.Service) {
			return nil, nil, fmt.Errorf("keyring service %q is not available", cfg.Storage.Keyring.Service)
		}

		return storagekeyring.New(cfg.Storage.Keyring.Service), noop, nil
	case config.StorageValKey:
		client, err := newValkeyClient(cfg.Storage.ValKey)
		if err != nil {
			return nil, nil, err
		}

		return storagevalkey.New(client, cfg.Storage.ValKey.Prefix), client.Close, nil
	case config.StorageRedis:
		client, err := newRedisClient(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, err
		}

		closeClient := func() {
			if err := client.Close(); err != nil {
				slogctx.Error(ctx, "Failed to close the redis client", "error", err)
			}
		}

		return storageredis.New(client, cfg.Storage.Redis.Prefix), closeClient, nil
	case config.StoragePostgres:
		db, err := newPgxPool(ctx, cfg.Storage.Database)
		if err != nil {
			return nil, nil, err
		}

		return storagesql.New(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func newValkeyClient(cfg config.ValKey) (valkey.Client, error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.User)
	if err != nil {
		return nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("loading valkey password: %w", err)
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	})
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return client, nil
}

func newRedisClient(cfg config.Redis) (redis.UniversalClient, error) {
	username, err := loadOptionalSourceRef(cfg.User)
	if err != nil {
		return nil, fmt.Errorf("loading redis username: %w", err)
	}

	password, err := loadOptionalSourceRef(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("loading redis password: %w", err)
	}

	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Username: username,
		Password: password,
		DB:       cfg.DB,
	}), nil
}

func newPgxPool(ctx context.Context, cfg config.Database) (*pgxpool.Pool, error) {
	connStr, err := config.MakeConnStr(cfg)
	if err != nil {
		return nil, fmt.Errorf("making dsn from config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing pgxpool config: %w", err)
	}

	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("initialising pgxpool connection: %w", err)
	}

	return db, nil
}

// loadOptionalSourceRef returns an empty value for an unset reference.
func loadOptionalSourceRef(ref commoncfg.SourceRef) (string, error) {
	if ref.Source == "" {
		return "", nil
	}

	v, err := commoncfg.LoadValueFromSourceRef(ref)
	if err != nil {
		return "", err
	}

	return string(v), nil
}
