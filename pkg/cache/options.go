package cache

import "time"

// Option configures a cache. Each implementation reads the fields it needs
// and ignores the rest, so one option list can build a layered stack.
type Option func(*options)

type options struct {
	addr     string
	password string
	db       int
	poolSize int
	prefix   string

	maxSize int
	cleanup time.Duration
	l1TTL   time.Duration
}

func newOptions(opts []Option) options {
	o := options{
		addr:     "localhost:6379",
		poolSize: 10,
		prefix:   "finfit",
		maxSize:  1000,
		cleanup:  5 * time.Minute,
		l1TTL:    time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxSize < 1 {
		o.maxSize = 1
	}
	return o
}

// WithAddr sets the host:port of the Redis server.
func WithAddr(addr string) Option { return func(o *options) { o.addr = addr } }

// WithAuth selects the Redis password and database.
func WithAuth(password string, db int) Option {
	return func(o *options) { o.password, o.db = password, db }
}

func WithPoolSize(n int) Option { return func(o *options) { o.poolSize = n } }

// WithPrefix namespaces Redis keys as prefix:key. An empty prefix disables it.
func WithPrefix(prefix string) Option { return func(o *options) { o.prefix = prefix } }

// WithMaxSize bounds the number of in-memory entries.
func WithMaxSize(n int) Option { return func(o *options) { o.maxSize = n } }

func WithCleanupInterval(d time.Duration) Option { return func(o *options) { o.cleanup = d } }

// WithL1TTL caps how long a layered cache keeps an entry in memory.
func WithL1TTL(d time.Duration) Option { return func(o *options) { o.l1TTL = d } }
