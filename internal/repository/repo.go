package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// UpsertSettings returns the guild's settings, creating the row seeded with
// the process-wide defaults when the guild is new. Existing rows are left
// alone.
func (r *Repo) UpsertSettings(ctx context.Context, guild string, waitSec, pageSize int) (*Settings, error) {
	_, _ = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings(guild_id, seconds_wait_after_empty, default_queue_page_size)
		 VALUES (?,?,?)`, guild, waitSec, pageSize,
	)
	return r.GetSettings(ctx, guild)
}

func (r *Repo) GetSettings(ctx context.Context, guild string) (*Settings, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT guild_id, seconds_wait_after_empty, default_queue_page_size, queue_add_ephemeral
	FROM settings WHERE guild_id = ?`, guild)

	var s Settings
	var b1 int
	if err := row.Scan(
		&s.GuildID,
		&s.SecondsWaitAfterEmpty,
		&s.DefaultQueuePageSize,
		&b1,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}

	s.QAddEphemeral = b1 != 0
	return &s, nil
}

func (r *Repo) UpdateSettings(ctx context.Context, s *Settings) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE settings SET
		  seconds_wait_after_empty=?,
		  default_queue_page_size=?,
		  queue_add_ephemeral=?
		WHERE guild_id=?`,
		s.SecondsWaitAfterEmpty, s.DefaultQueuePageSize, boolToInt(s.QAddEphemeral), s.GuildID,
	)
	return err
}

func (r *Repo) RecordDownload(ctx context.Context, title, sourceURL string, bytes int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO downloads(title, source_url, bytes, created_at) VALUES (?,?,?,?)`,
		title, sourceURL, bytes, time.Now().Unix(),
	)
	return err
}

func (r *Repo) CountDownloads(ctx context.Context) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM downloads`)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
