package storagevalkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/api-client/pkg/storage"
)

type Store struct {
	valkey valkey.Client
	prefix string
}

var _ storage.Store = (*Store)(nil)

func New(valkeyClient valkey.Client, prefix string) *Store {
	prefix = strings.TrimSuffix(prefix, ":")
	return &Store{
		valkey: valkeyClient,
		prefix: prefix,
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	bytes, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(s.key(key)).Build()).AsBytes()
	if err != nil {
		return nil, s.mapErr("get", err)
	}

	return bytes, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.valkey.B().Set().Key(s.key(key)).Value(valkey.BinaryString(value))

	var err error
	if ttl > 0 {
		err = s.valkey.Do(ctx, cmd.PxMilliseconds(ttl.Milliseconds()).Build()).Error()
	} else {
		err = s.valkey.Do(ctx, cmd.Build()).Error()
	}
	if err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

// Take relies on GETDEL, which the server executes atomically.
func (s *Store) Take(ctx context.Context, key string) ([]byte, error) {
	bytes, err := s.valkey.Do(ctx, s.valkey.B().Getdel().Key(s.key(key)).Build()).AsBytes()
	if err != nil {
		return nil, s.mapErr("getdel", err)
	}

	return bytes, nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, s.key(key))
	}

	if err := s.valkey.Do(ctx, s.valkey.B().Del().Key(prefixed...).Build()).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}

	return nil
}

func (s *Store) key(key string) string {
	if s.prefix == "" {
		return key
	}

	return s.prefix + ":" + key
}

func (s *Store) mapErr(command string, err error) error {
	valkeyErr, ok := valkey.IsValkeyErr(err)
	if ok && valkeyErr.IsNil() {
		return storage.ErrNotFound
	}

	return fmt.Errorf("executing %s command: %w", command, err)
}
