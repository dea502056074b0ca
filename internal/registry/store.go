package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "imgbot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is the SQLite-backed user and image registry.
// Every method is individually atomic and safe for concurrent use.
type Store struct {
	db     *sql.DB
	log    logx.Logger
	now    func() time.Time
	locale string
}

// Open creates the database file if needed and applies the schema.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("registry: sqlite path is required")
	}
	if strings.TrimSpace(cfg.DefaultLocale) == "" {
		return nil, errors.New("registry: default locale is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")

	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, storageErr("open", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &Store{db: db, log: log, now: now, locale: cfg.DefaultLocale}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("registry opened", logx.String("path", path))
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return storageErr("migrate", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertUser registers a user on first sight. An existing record is left
// untouched: first_seen, counter, locale and names are never overwritten.
func (s *Store) UpsertUser(ctx context.Context, p Profile) error {
	ts := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, username, first_name, last_name, language, images_count, first_seen, last_active)
		 VALUES(?,?,?,?,?,0,?,?)
		 ON CONFLICT(user_id) DO NOTHING`,
		p.ID, nullStr(p.Username), nullStr(p.FirstName), nullStr(p.LastName), s.locale, ts, ts,
	)
	return storageErr("upsert user", err)
}

// TouchActivity moves last_active forward to now. Unknown ids are ignored.
func (s *Store) TouchActivity(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_active = MAX(last_active, ?) WHERE user_id = ?`,
		s.now().UnixMilli(), id,
	)
	return storageErr("touch activity", err)
}

func (s *Store) IncrementImageCount(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET images_count = images_count + 1 WHERE user_id = ?`, id)
	if err != nil {
		return storageErr("increment images", err)
	}
	return mustAffect(res, "increment images")
}

// RecordImage appends an image row without touching the user's counter.
func (s *Store) RecordImage(ctx context.Context, userID int64, imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return errors.New("registry: image url is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images(user_id, image_url, upload_date) VALUES(?,?,?)`,
		userID, imageURL, s.now().UnixMilli(),
	)
	return storageErr("record image", err)
}

// RecordUpload increments the counter and appends the image in one transaction.
func (s *Store) RecordUpload(ctx context.Context, userID int64, imageURL string) (err error) {
	if strings.TrimSpace(imageURL) == "" {
		return errors.New("registry: image url is empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("record upload", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE users SET images_count = images_count + 1 WHERE user_id = ?`, userID)
	if err != nil {
		return storageErr("record upload", err)
	}
	if err = mustAffect(res, "record upload"); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO images(user_id, image_url, upload_date) VALUES(?,?,?)`,
		userID, imageURL, s.now().UnixMilli(),
	); err != nil {
		return storageErr("record upload", err)
	}
	if err = tx.Commit(); err != nil {
		return storageErr("record upload", err)
	}
	return nil
}

func (s *Store) GetUserLocale(ctx context.Context, id int64) (string, error) {
	var loc string
	err := s.db.QueryRowContext(ctx, `SELECT language FROM users WHERE user_id = ?`, id).Scan(&loc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", storageErr("get locale", err)
	}
	return loc, nil
}

func (s *Store) SetUserLocale(ctx context.Context, id int64, locale string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET language = ? WHERE user_id = ?`, locale, id)
	if err != nil {
		return storageErr("set locale", err)
	}
	return mustAffect(res, "set locale")
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	var (
		u                   User
		uname, first, last  sql.NullString
		firstSeen, lastSeen int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, first_name, last_name, language, images_count, first_seen, last_active
		 FROM users WHERE user_id = ?`, id,
	).Scan(&u.ID, &uname, &first, &last, &u.Locale, &u.ImagesCount, &firstSeen, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, storageErr("get user", err)
	}
	u.Username, u.FirstName, u.LastName = uname.String, first.String, last.String
	u.FirstSeen = time.UnixMilli(firstSeen)
	u.LastActive = time.UnixMilli(lastSeen)
	return u, nil
}

// ListAllUserIDs returns every registered id in insertion order.
func (s *Store) ListAllUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY rowid`)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("list users", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list users", err)
	}
	return ids, nil
}

// ListImages returns a user's uploads, oldest first.
func (s *Store) ListImages(ctx context.Context, userID int64) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, image_url, upload_date FROM images WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, storageErr("list images", err)
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		var (
			img Image
			at  int64
		)
		if err := rows.Scan(&img.ID, &img.UserID, &img.URL, &at); err != nil {
			return nil, storageErr("list images", err)
		}
		img.UploadedAt = time.UnixMilli(at)
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list images", err)
	}
	return out, nil
}

// ComputeStats reads the three aggregates in a single read transaction.
func (s *Store) ComputeStats(ctx context.Context) (Stats, error) {
	cutoff := s.now().Add(-ActiveWindow).UnixMilli()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Stats{}, storageErr("compute stats", err)
	}
	defer func() { _ = tx.Rollback() }()

	var st Stats
	err = tx.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM images),
			(SELECT COUNT(*) FROM users WHERE last_active >= ?)`, cutoff,
	).Scan(&st.TotalUsers, &st.TotalImages, &st.ActiveUsers)
	if err != nil {
		return Stats{}, storageErr("compute stats", err)
	}
	return st, nil
}

func mustAffect(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
