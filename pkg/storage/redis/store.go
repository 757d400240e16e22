// Package redis implements a block backend speaking the redis protocol.
//
// This covers 0-db (zdb), ardb and plain redis servers: the hub only needs
// EXISTS and SET. Existence checks for a batch of keys are pipelined and
// executed as one round trip.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/oneconcern/flisthub/pkg/storage"
	"github.com/oneconcern/flisthub/pkg/storage/status"
	goredis "github.com/redis/go-redis/v9"
)

var _ storage.Store = &redisStore{}

type redisStore struct {
	client *goredis.Client
	opts   *Options
}

// New builds a redis protocol backend. Connections are established lazily.
func New(opts ...Option) (storage.Store, error) {
	o := defaultOptions(opts)
	if o.Addr == "" {
		return nil, status.ErrInvalidAddress.Wrap(errors.New("redis address cannot be empty"))
	}

	ropts := &goredis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
		// 0-db doesn't speak RESP3
		Protocol: 2,
	}
	if o.TLS {
		host, _, err := net.SplitHostPort(o.Addr)
		if err != nil {
			return nil, status.ErrInvalidAddress.Wrap(err)
		}
		ropts.TLSConfig = &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		}
	}
	if o.Namespace != "" {
		namespace, password := o.Namespace, o.NamespacePassword
		ropts.OnConnect = func(ctx context.Context, cn *goredis.Conn) error {
			args := []interface{}{"SELECT", namespace}
			if password != "" {
				args = append(args, password)
			}
			return cn.Do(ctx, args...).Err()
		}
	}

	return &redisStore{
		client: goredis.NewClient(ropts),
		opts:   o,
	}, nil
}

// Ping checks that the backend is reachable
func Ping(ctx context.Context, store storage.Store) error {
	s, ok := store.(*redisStore)
	if !ok {
		return nil
	}
	return classify(s.client.Ping(ctx).Err())
}

func (s *redisStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

func (s *redisStore) HasMany(ctx context.Context, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return []bool{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.IntCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Exists(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, classify(err)
	}

	result := make([]bool, len(keys))
	for i, cmd := range cmds {
		result[i] = cmd.Val() > 0
	}
	return result, nil
}

func (s *redisStore) Put(ctx context.Context, key string, data []byte) error {
	return classify(s.client.Set(ctx, key, data, 0).Err())
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func (s *redisStore) String() string {
	if s.opts.Namespace != "" {
		return fmt.Sprintf("redis@%s/%s", s.opts.Addr, s.opts.Namespace)
	}
	return "redis@" + s.opts.Addr
}

// classify maps client errors to the backend taxonomy: server replies are rejections,
// everything that prevents getting a reply is an unavailability.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var (
		replyErr goredis.Error
		netErr   net.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, goredis.ErrClosed),
		errors.Is(err, goredis.ErrPoolTimeout),
		errors.As(err, &netErr):
		return status.ErrUnavailable.Wrap(err)
	case errors.As(err, &replyErr):
		return status.ErrRejected.Wrap(err)
	default:
		return status.ErrUnavailable.Wrap(err)
	}
}
