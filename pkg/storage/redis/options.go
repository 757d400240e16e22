package redis

import "time"

// Option configures a redis protocol backend
type Option func(*Options)

// Options to connect a redis protocol backend
type Options struct {
	Addr              string
	Password          string
	Namespace         string
	NamespacePassword string
	TLS               bool
	DialTimeout       time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	PoolSize          int
}

// Addr sets the host:port of the backend
func Addr(addr string) Option {
	return func(o *Options) {
		o.Addr = addr
	}
}

// Password sets the password used to authenticate against the backend
func Password(password string) Option {
	return func(o *Options) {
		o.Password = password
	}
}

// Namespace selects a 0-db namespace on every new connection, with an optional password
func Namespace(namespace, password string) Option {
	return func(o *Options) {
		o.Namespace = namespace
		o.NamespacePassword = password
	}
}

// TLS enables transport security
func TLS(enabled bool) Option {
	return func(o *Options) {
		o.TLS = enabled
	}
}

// Timeouts sets the dial and I/O timeouts
func Timeouts(dial, read, write time.Duration) Option {
	return func(o *Options) {
		if dial > 0 {
			o.DialTimeout = dial
		}
		if read > 0 {
			o.ReadTimeout = read
		}
		if write > 0 {
			o.WriteTimeout = write
		}
	}
}

// PoolSize sets the size of the connection pool
func PoolSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.PoolSize = size
		}
	}
}

func defaultOptions(opts []Option) *Options {
	o := &Options{
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
	}
	for _, apply := range opts {
		apply(o)
	}
	return o
}
