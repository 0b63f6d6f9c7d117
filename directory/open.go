// Package directory opens the UserDirectory backend selected in Settings.
package directory

import (
	"context"
	"io"

	"github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-pwauth"
	"github.com/goliatone/go-pwauth/directory/boltdir"
	"github.com/goliatone/go-pwauth/directory/memory"
	"github.com/goliatone/go-pwauth/directory/redisdir"
	"github.com/goliatone/go-pwauth/directory/sqldir"
	"github.com/redis/go-redis/v9"
)

// Store is a directory that can also be written to. Every backend
// implements it; the auth components only need the read side.
type Store interface {
	auth.UserDirectory
	Save(ctx context.Context, record auth.UserRecord) (*auth.UserRecord, error)
	SetActive(ctx context.Context, identifier string, active bool) error
	Delete(ctx context.Context, identifier string) error
}

var (
	_ Store = (*memory.Directory)(nil)
	_ Store = (*sqldir.Directory)(nil)
	_ Store = (*redisdir.Directory)(nil)
	_ Store = (*boltdir.Directory)(nil)
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the backend named by s.Directory. SQL backends are migrated
// before returning. The closer releases the backend's connections.
func Open(ctx context.Context, s *auth.Settings) (Store, io.Closer, error) {
	switch s.Directory {
	case auth.DirectoryMemory, "":
		dir, err := memory.New()
		return dir, nopCloser{}, err

	case auth.DirectorySQLite, auth.DirectoryPostgres:
		dir, err := sqldir.Open(sqldir.Dialect(s.Directory), s.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := dir.Migrate(ctx); err != nil {
			dir.Close()
			return nil, nil, err
		}
		return dir, dir, nil

	case auth.DirectoryRedis:
		client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to connect to redis").
				WithMetadata(map[string]any{"addr": s.RedisAddr})
		}
		dir, err := redisdir.New(redisdir.Config{Client: client})
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return dir, client, nil

	case auth.DirectoryBolt:
		dir, err := boltdir.Open(s.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return dir, dir, nil
	}

	return nil, nil, errors.New("unknown directory backend", errors.CategoryBadInput).
		WithMetadata(map[string]any{"directory": s.Directory})
}
