// Package dialer resolves backend addresses into block stores.
//
// Supported address forms:
//   - host:port[/namespace]             a redis protocol backend (0-db)
//   - redis://host:port[/namespace]     idem
//   - zdb://host:port[/namespace]       idem
//   - rediss://host:port[/namespace]    idem, with TLS
//   - file:///some/dir                  a local file system backend
package dialer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/oneconcern/flisthub/pkg/storage"
	"github.com/oneconcern/flisthub/pkg/storage/localfs"
	"github.com/oneconcern/flisthub/pkg/storage/redis"
	"github.com/oneconcern/flisthub/pkg/storage/status"
	"go.uber.org/zap"
)

// Dial resolves a backend address. The password is used as the namespace
// password when a namespace is given, as the connection password otherwise.
//
// When a logger is provided, the store is instrumented.
func Dial(address, password string, logger *zap.Logger) (storage.Store, error) {
	store, err := dial(address, password)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		store = storage.Instrument(logger, store)
	}
	return store, nil
}

func dial(address, password string) (storage.Store, error) {
	if address == "" {
		return nil, status.ErrInvalidAddress.Wrap(fmt.Errorf("empty address"))
	}
	if !strings.Contains(address, "://") {
		address = "redis://" + address
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, status.ErrInvalidAddress.Wrap(err)
	}

	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return nil, status.ErrInvalidAddress.Wrap(fmt.Errorf("missing path in %q", address))
		}
		return localfs.NewAt(u.Path)

	case "redis", "rediss", "zdb":
		if u.Hostname() == "" || u.Port() == "" {
			return nil, status.ErrInvalidAddress.Wrap(fmt.Errorf("expected host:port in %q", address))
		}
		opts := []redis.Option{
			redis.Addr(u.Host),
			redis.TLS(u.Scheme == "rediss"),
		}
		namespace := strings.Trim(u.Path, "/")
		if namespace != "" {
			opts = append(opts, redis.Namespace(namespace, password))
		} else if password != "" {
			opts = append(opts, redis.Password(password))
		}
		return redis.New(opts...)

	default:
		return nil, status.ErrInvalidAddress.Wrap(fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
}
