// Package offline saves describe results so statements can be described
// later without a database connection.
//
// Each result is stored as JSON under a key derived from the SHA-256 of the
// query text:
//
//	query-<hex sha256>.json
package offline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/koustreak/pgdescribe/internal/describe"
	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/filestore"
	"github.com/koustreak/pgdescribe/internal/logger"
)

const keyPrefix = "query-"

// Entry is the stored form of one describe.
type Entry struct {
	Query    string           `json:"query"`
	Hash     string           `json:"hash"`
	SavedAt  time.Time        `json:"saved_at"`
	Describe *describe.Result `json:"describe"`
}

// Cache reads and writes Entries in a filestore.Store.
type Cache struct {
	store filestore.Store
	log   *logger.Logger
	now   func() time.Time
}

// New returns a Cache over store.
func New(store filestore.Store, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{store: store, log: log, now: time.Now}
}

// Hash returns the hex SHA-256 of sql.
func Hash(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}

// Key returns the object key sql is stored under.
func Key(sql string) string {
	return keyPrefix + Hash(sql) + ".json"
}

// Save stores res as the describe of sql, replacing any earlier entry.
func (c *Cache) Save(ctx context.Context, sql string, res *describe.Result) error {
	if res == nil {
		return errs.New(errs.ErrKindInvalidInput, "nothing to save")
	}
	entry := Entry{Query: sql, Hash: Hash(sql), SavedAt: c.now().UTC(), Describe: res}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "encode describe result", err)
	}
	if err := c.store.Put(ctx, Key(sql), data, "application/json"); err != nil {
		return err
	}
	c.log.With().Str("key", Key(sql)).Int("columns", len(res.Columns)).Logger().Debug("saved describe result")
	return nil
}

// Load returns the saved describe of sql. A statement that was never saved
// is an errs.ErrKindNotFound error.
func (c *Cache) Load(ctx context.Context, sql string) (*describe.Result, error) {
	e, err := c.load(ctx, Key(sql))
	if err != nil {
		return nil, err
	}
	if e.Query != sql {
		return nil, errs.Newf(errs.ErrKindProtocol, "entry %s holds a different query", Key(sql))
	}
	return e.Describe, nil
}

// Entries returns every saved entry, ordered by key.
func (c *Cache) Entries(ctx context.Context) ([]*Entry, error) {
	objects, err := c.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(objects))
	for _, o := range objects {
		e, err := c.load(ctx, o.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Cache) load(ctx context.Context, key string) (*Entry, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "no saved describe for this query", err)
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errs.Wrap(errs.ErrKindProtocol, "decode "+key, err)
	}
	if e.Describe == nil {
		return nil, errs.Newf(errs.ErrKindProtocol, "entry %s has no describe result", key)
	}
	return &e, nil
}
