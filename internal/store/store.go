package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mikequentel/tumblrclient/internal/model"
	"github.com/mikequentel/tumblrclient/internal/summary"
)

// SummaryLen caps the stored summary of a post, in runes.
const SummaryLen = 140

// ErrNoPending is returned by NextPending when every archived post has
// been reblogged and unliked.
var ErrNoPending = errors.New("no pending liked posts remain")

const schema = `
CREATE TABLE IF NOT EXISTS liked_posts (
	id           TEXT PRIMARY KEY,
	reblog_key   TEXT NOT NULL,
	blog_name    TEXT NOT NULL DEFAULT '',
	post_type    TEXT NOT NULL DEFAULT '',
	post_url     TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL DEFAULT '',
	liked_at     INTEGER NOT NULL DEFAULT 0,
	archived_at  INTEGER NOT NULL,
	reblog_id    INTEGER NULL,
	reblogged_at INTEGER NULL,
	unliked_at   INTEGER NULL
);
CREATE INDEX IF NOT EXISTS liked_posts_pending ON liked_posts (unliked_at, reblogged_at, liked_at);
`

// Entry is one archived liked post.
type Entry struct {
	Ref         model.PostRef
	BlogName    string
	Type        string
	PostURL     string
	Summary     string
	LikedAt     time.Time
	ArchivedAt  time.Time
	ReblogID    int64
	RebloggedAt time.Time
	UnlikedAt   time.Time
}

// Stats counts archived posts by progress.
type Stats struct {
	Archived  int `json:"archived"`
	Reblogged int `json:"reblogged"`
	Unliked   int `json:"unliked"`
}

// Store archives liked posts in sqlite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating when needed) the archive at dsn, a file path or
// ":memory:".
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one connection so ":memory:" is a single database
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening archive %s: %w", dsn, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveLiked archives posts not seen before and returns how many were new.
// Posts without id or reblog key are skipped.
func (s *Store) SaveLiked(ctx context.Context, posts []model.Post) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO liked_posts (id, reblog_key, blog_name, post_type, post_url, summary, liked_at, archived_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := s.now().Unix()
	inserted := 0
	for _, p := range posts {
		ref := p.Ref()
		if !ref.Valid() {
			continue
		}
		var likedAt int64
		if t := p.LikedAt(); !t.IsZero() {
			likedAt = t.Unix()
		}
		res, err := stmt.ExecContext(ctx,
			ref.ID, ref.ReblogKey, p.BlogName(), p.Type(), p.PostURL(),
			summary.Post(p, SummaryLen), likedAt, now)
		if err != nil {
			return 0, fmt.Errorf("archiving post %s: %w", ref.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// NextPending returns the next liked post still to be requeued. Posts that
// were reblogged but not unliked come first, then the oldest like that has
// not been reblogged.
func (s *Store) NextPending(ctx context.Context) (Entry, error) {
	const q = `
SELECT id, reblog_key, blog_name, post_type, post_url, summary, liked_at, archived_at, reblog_id, reblogged_at, unliked_at
FROM liked_posts
WHERE unliked_at IS NULL
ORDER BY reblogged_at IS NULL, liked_at, archived_at, id
LIMIT 1;
`
	e, err := scanEntry(s.db.QueryRowContext(ctx, q))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNoPending
	}
	return e, err
}

// Get returns the archived post id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	const q = `
SELECT id, reblog_key, blog_name, post_type, post_url, summary, liked_at, archived_at, reblog_id, reblogged_at, unliked_at
FROM liked_posts
WHERE id = ?;
`
	e, err := scanEntry(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("post %s is not archived", id)
	}
	return e, err
}

func (s *Store) MarkReblogged(ctx context.Context, id string, reblogID int64) error {
	return s.mark(ctx, `UPDATE liked_posts SET reblog_id = ?, reblogged_at = ? WHERE id = ?`, reblogID, s.now().Unix(), id)
}

func (s *Store) MarkUnliked(ctx context.Context, id string) error {
	return s.mark(ctx, `UPDATE liked_posts SET unliked_at = ? WHERE id = ?`, s.now().Unix(), id)
}

func (s *Store) mark(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("post %v is not archived", args[len(args)-1])
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(reblogged_at), COUNT(unliked_at) FROM liked_posts`).Scan(&st.Archived, &st.Reblogged, &st.Unliked)
	return st, err
}

func scanEntry(row *sql.Row) (Entry, error) {
	var (
		e                                Entry
		likedAt, archivedAt              int64
		reblogID, rebloggedAt, unlikedAt sql.NullInt64
	)
	err := row.Scan(&e.Ref.ID, &e.Ref.ReblogKey, &e.BlogName, &e.Type, &e.PostURL, &e.Summary,
		&likedAt, &archivedAt, &reblogID, &rebloggedAt, &unlikedAt)
	if err != nil {
		return Entry{}, err
	}
	e.LikedAt = unixOrZero(likedAt)
	e.ArchivedAt = unixOrZero(archivedAt)
	e.ReblogID = reblogID.Int64
	if rebloggedAt.Valid {
		e.RebloggedAt = unixOrZero(rebloggedAt.Int64)
	}
	if unlikedAt.Valid {
		e.UnlikedAt = unixOrZero(unlikedAt.Int64)
	}
	return e, nil
}

func unixOrZero(secs int64) time.Time {
	if secs == 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
