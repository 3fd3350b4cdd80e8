package describe

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/pgdescribe/internal/database"
	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/logger"
	"github.com/koustreak/pgdescribe/internal/types"
)

// DefaultStatementPrefix names the statements Describe prepares.
const DefaultStatementPrefix = "pgdescribe_s_"

// Options configures a Conn.
type Options struct {
	Logger *logger.Logger `yaml:"-"`

	// ExplainFallback enables the EXPLAIN step of nullability inference.
	ExplainFallback bool `yaml:"explain_fallback"`

	// StatementPrefix is prepended to a per-connection sequence number to
	// name prepared statements.
	StatementPrefix string `yaml:"statement_prefix"`
}

// DefaultOptions returns the options Conn uses when none are given.
func DefaultOptions() Options {
	return Options{
		Logger:          logger.Nop(),
		ExplainFallback: true,
		StatementPrefix: DefaultStatementPrefix,
	}
}

// Conn describes statements over one database connection.
//
// A Conn is NOT safe for concurrent use: a call made while another is in
// flight fails with an errs.ErrKindMisuse error instead of interleaving I/O.
// Once a call fails in a way that may leave a response unread on the wire
// (context ended, transport failure) the Conn is unusable and every later
// call returns errs.ErrKindConnectionAborted.
type Conn struct {
	prep database.Preparer
	log  *logger.Logger
	opts Options

	resolver *Resolver
	builder  *Builder
	inferrer *Inferrer

	seq  uint64
	busy atomic.Bool
	dead atomic.Pointer[error]
}

// New returns a Conn preparing statements with prep and reading the catalog
// through cat. Both must run over the same underlying connection.
func New(prep database.Preparer, cat Catalog, opts Options) *Conn {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.StatementPrefix == "" {
		opts.StatementPrefix = DefaultStatementPrefix
	}
	res := NewResolver(cat, types.NewCache(), opts.Logger)
	return &Conn{
		prep:     prep,
		log:      opts.Logger,
		opts:     opts,
		resolver: res,
		builder:  NewBuilder(res),
		inferrer: NewInferrer(cat, opts.Logger, opts.ExplainFallback),
	}
}

// Describe prepares sql, describes its parameters and columns, infers
// column nullability and publishes the result as the connection's current
// snapshot. The prepared statement is released before returning.
func (c *Conn) Describe(ctx context.Context, sql string) (*Result, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	defer c.leave()

	res, err := c.describe(ctx, sql)
	if err != nil {
		c.poison(ctx, err)
		return nil, err
	}
	return res, nil
}

func (c *Conn) describe(ctx context.Context, sql string) (*Result, error) {
	c.seq++
	name := c.opts.StatementPrefix + strconv.FormatUint(c.seq, 10)

	sd, err := c.prep.Prepare(ctx, name, sql)
	if err != nil {
		return nil, err
	}
	defer func() {
		if ctx.Err() != nil {
			return
		}
		if err := c.prep.Deallocate(ctx, name); err != nil {
			c.log.WarnWith("deallocate failed", err, map[string]interface{}{"statement": name})
		}
	}()

	res, err := c.build(ctx, name, sd)
	if err != nil {
		return nil, err
	}

	c.log.With().
		Str("statement", name).
		Int("columns", len(res.Columns)).
		Int("params", len(res.Parameters)).
		Int("catalog_fetches", c.resolver.Fetches()).
		Logger().Debug("described statement")
	return res, nil
}

func (c *Conn) build(ctx context.Context, name string, sd *pgconn.StatementDescription) (*Result, error) {
	params, err := c.builder.Parameters(ctx, sd.ParamOIDs)
	if err != nil {
		return nil, err
	}

	cols, index, err := c.builder.Columns(ctx, sd.Fields, true)
	if err != nil {
		return nil, err
	}

	verdicts, err := c.inferrer.Infer(ctx, name, len(sd.ParamOIDs), cols)
	if err != nil {
		return nil, err
	}
	for i := range cols {
		cols[i].Nullable = verdicts[i]
	}

	res := newResult(cols, params, index)
	c.builder.Publish(res)
	return res, nil
}

// DescribeFields builds and publishes a columns-only result from a row
// description already received, for example at the start of a result
// stream. Pass allowFetch false while another result stream on the
// connection is still being read; unknown types then come back as
// placeholders to be settled later with Refresh.
func (c *Conn) DescribeFields(ctx context.Context, fields []pgconn.FieldDescription, allowFetch bool) (*Result, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	defer c.leave()

	cols, index, err := c.builder.Columns(ctx, fields, allowFetch)
	if err != nil {
		c.poison(ctx, err)
		return nil, err
	}
	res := newResult(cols, nil, index)
	c.builder.Publish(res)
	return res, nil
}

// Refresh resolves a placeholder returned while fetching was not permitted.
// Anything else is returned unchanged.
func (c *Conn) Refresh(ctx context.Context, t *types.Type) (*types.Type, error) {
	if t == nil || t.Kind != types.KindUnresolved {
		return t, nil
	}
	return c.ResolveType(ctx, t.OID)
}

// ResolveType returns the descriptor for oid, fetching it if needed.
func (c *Conn) ResolveType(ctx context.Context, oid uint32) (*types.Type, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	defer c.leave()

	t, err := c.resolver.Resolve(ctx, oid, true)
	if err != nil {
		c.poison(ctx, err)
		return nil, err
	}
	return t, nil
}

// TypeOIDByName returns the oid of the named type, case-insensitively.
func (c *Conn) TypeOIDByName(ctx context.Context, name string) (uint32, error) {
	if err := c.enter(); err != nil {
		return 0, err
	}
	defer c.leave()

	oid, err := c.resolver.ResolveOIDByName(ctx, name)
	if err != nil {
		c.poison(ctx, err)
		return 0, err
	}
	return oid, nil
}

// Current returns the last published result, or nil before the first
// describe. It may be called concurrently with anything.
func (c *Conn) Current() *Result {
	return c.builder.Current()
}

// Fetches returns the number of catalog round trips made for type
// resolution on this connection. Like every other method except Current
// and Err it must not be called concurrently.
func (c *Conn) Fetches() int {
	return c.resolver.Fetches()
}

// Err returns a ConnectionAborted error wrapping the failure that made the
// connection unusable, or nil.
func (c *Conn) Err() error {
	p := c.dead.Load()
	if p == nil {
		return nil
	}
	return errs.Wrap(errs.ErrKindConnectionAborted, "connection unusable after earlier failure", *p)
}

func (c *Conn) enter() error {
	if !c.busy.CompareAndSwap(false, true) {
		return errs.New(errs.ErrKindMisuse, "connection is in use by another call")
	}
	if err := c.Err(); err != nil {
		c.busy.Store(false)
		return err
	}
	return nil
}

func (c *Conn) leave() {
	c.busy.Store(false)
}

// poison marks the connection dead if err may have left the wire protocol
// out of step.
func (c *Conn) poison(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errs.IsTimeout(err),
		errs.IsConnectionFailed(err),
		errs.IsConnectionAborted(err):
		c.dead.Store(&err)
		c.log.WarnWith("connection marked unusable", err, nil)
	}
}
