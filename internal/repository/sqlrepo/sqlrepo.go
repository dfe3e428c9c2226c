package sqlrepo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/feedback/internal/db"
	"github.com/garnizeh/feedback/pkg/repository"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Repo implements repository.Storage on a relational database through the
// internal DB wrapper. Queries are written with ? placeholders and rebound
// for the connection's dialect.
type Repo struct {
	conn   *db.DB
	logger *slog.Logger
	now    func() time.Time
}

// Ensure Repo implements the public interfaces.
var _ repository.FeedbackRepo = (*Repo)(nil)
var _ repository.UserRepo = (*Repo)(nil)
var _ repository.Storage = (*Repo)(nil)

type Option func(*Repo)

func WithLogger(l *slog.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(r *Repo) { r.now = now }
}

// Open connects to the database named by url. An empty url is an error:
// the persistent store cannot be built without a connection string.
func Open(ctx context.Context, url string, opts ...Option) (*Repo, error) {
	if url == "" {
		return nil, db.ErrMissingDatabaseURL
	}

	conn, err := db.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	return New(conn, opts...), nil
}

func New(conn *db.DB, opts ...Option) *Repo {
	r := &Repo{conn: conn, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Repo) Kind() string { return string(r.conn.Dialect()) }

func (r *Repo) Close() error { return r.conn.Close() }

// DB exposes the connection for migrations and maintenance scripts.
func (r *Repo) DB() *db.DB { return r.conn }

// stamp returns the creation time at the precision both dialects store.
func (r *Repo) stamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}
