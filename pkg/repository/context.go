package repository

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"specstore/pkg/query"
)

// Context is the unit of work: it binds one backing-store session to the
// repositories obtained from it and coordinates atomic persistence. A
// context and its repositories are exclusively owned by one logical
// operation; the mutex below guards only the repository cache, not the
// session.
type Context struct {
	sess    query.Session
	logger  zerolog.Logger
	metrics MetricsRecorder

	mu    sync.Mutex
	repos map[reflect.Type]*repoPair
}

type repoPair struct {
	read  any
	write any
}

// Option configures a Context.
type Option func(*Context)

// WithLogger attaches a structured logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Context) { c.logger = logger }
}

// WithMetrics attaches a metrics recorder observed by every repository
// operation and by SaveChanges.
func WithMetrics(rec MetricsRecorder) Option {
	return func(c *Context) { c.metrics = rec }
}

// NewContext constructs a unit of work over the session.
func NewContext(sess query.Session, opts ...Option) *Context {
	c := &Context{
		sess:   sess,
		logger: zerolog.Nop(),
		repos:  map[reflect.Type]*repoPair{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session exposes the owned session for driver-specific hooks.
func (c *Context) Session() query.Session { return c.sess }

// SaveChanges persists every pending write staged across all repositories
// obtained from this context in one atomic call and returns the number of
// affected records. It is the only point writes become durable.
func (c *Context) SaveChanges(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := c.sess.SaveChanges(ctx)
	if c.metrics != nil {
		c.metrics.Observe(ctx, "save_changes", err == nil, time.Since(start))
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("save changes failed")
		return n, err
	}
	c.logger.Debug().Int64("affected", n).Msg("save changes")
	return n, nil
}

// BeginTransaction opens an explicit scope spanning multiple SaveChanges
// calls. Outside such a scope each SaveChanges is atomic on its own but
// uncoordinated with any other call.
func (c *Context) BeginTransaction(ctx context.Context) (*Transaction, error) {
	inner, err := c.sess.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Msg("transaction opened")
	return &Transaction{inner: inner, logger: c.logger}, nil
}

// Close releases the session. Pending unstaged work is discarded.
func (c *Context) Close() error {
	return c.sess.Close()
}

// Repo returns the read-write repository for T, lazily constructed and
// memoized per entity type: the same type always yields the same instance
// for the context's lifetime.
func Repo[T Entity[ID], ID comparable](c *Context) Repository[T, ID] {
	return pairFor[T, ID](c).write.(Repository[T, ID])
}

// ReadRepo returns the read-only repository for T, cached alongside the
// write surface of the same entity type.
func ReadRepo[T Entity[ID], ID comparable](c *Context) ReadRepository[T, ID] {
	return pairFor[T, ID](c).read.(ReadRepository[T, ID])
}

func pairFor[T Entity[ID], ID comparable](c *Context) *repoPair {
	key := reflect.TypeOf((*T)(nil)).Elem()
	c.mu.Lock()
	defer c.mu.Unlock()
	if pair, ok := c.repos[key]; ok {
		return pair
	}
	set := key.Name()
	pair := &repoPair{
		read:  newEntityRepository[T, ID](c.sess, set, false, c.metrics),
		write: newEntityRepository[T, ID](c.sess, set, true, c.metrics),
	}
	c.repos[key] = pair
	return pair
}

// EntityRepo returns the concrete write repository, for callers needing the
// projection helpers that live on the concrete type.
func EntityRepo[T Entity[ID], ID comparable](c *Context) *EntityRepository[T, ID] {
	return pairFor[T, ID](c).write.(*EntityRepository[T, ID])
}
