package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/olastephen/video-audio-downloader/internal/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS download_tasks (
	task_id         TEXT PRIMARY KEY,
	url             TEXT NOT NULL,
	quality         TEXT NOT NULL DEFAULT '',
	format          TEXT NOT NULL DEFAULT '',
	audio_only      INTEGER NOT NULL DEFAULT 0,
	direct_download INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	progress        REAL NOT NULL DEFAULT 0,
	filename        TEXT NOT NULL DEFAULT '',
	object_name     TEXT NOT NULL DEFAULT '',
	download_url    TEXT NOT NULL DEFAULT '',
	file_size       INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_download_tasks_status ON download_tasks(status);
`

// SQLite is the durable task store.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the schema.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("could not create db directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ensure schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Create(ctx context.Context, t task.Task) error {
	query := `
		INSERT INTO download_tasks (
			task_id, url, quality, format, audio_only, direct_download,
			status, progress, filename, object_name, download_url,
			file_size, error, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.URL, t.Options.Quality, t.Options.Format,
		boolToInt(t.Options.AudioOnly), boolToInt(t.Options.DirectDownload),
		string(t.State), t.Progress, t.Filename, t.ObjectName, t.DownloadURL,
		t.Size, t.Error, t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("could not insert task: %w", err)
	}
	return nil
}

// Update applies the set fields only, building the SET clause dynamically.
func (s *SQLite) Update(ctx context.Context, id string, f Fields) error {
	var (
		sets []string
		args []any
	)
	if f.State != nil {
		sets, args = append(sets, "status = ?"), append(args, string(*f.State))
	}
	if f.Progress != nil {
		sets, args = append(sets, "progress = ?"), append(args, *f.Progress)
	}
	if f.Filename != nil {
		sets, args = append(sets, "filename = ?"), append(args, *f.Filename)
	}
	if f.ObjectName != nil {
		sets, args = append(sets, "object_name = ?"), append(args, *f.ObjectName)
	}
	if f.DownloadURL != nil {
		sets, args = append(sets, "download_url = ?"), append(args, *f.DownloadURL)
	}
	if f.Size != nil {
		sets, args = append(sets, "file_size = ?"), append(args, *f.Size)
	}
	if f.Error != nil {
		sets, args = append(sets, "error = ?"), append(args, *f.Error)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UnixMilli(), id)

	query := fmt.Sprintf("UPDATE download_tasks SET %s WHERE task_id = ?", strings.Join(sets, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

const selectColumns = `
	task_id, url, quality, format, audio_only, direct_download,
	status, progress, filename, object_name, download_url,
	file_size, error, created_at, updated_at
`

func (s *SQLite) Get(ctx context.Context, id string) (task.Task, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM download_tasks WHERE task_id = ?", id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.Task{}, false, nil
		}
		return task.Task{}, false, fmt.Errorf("could not query task: %w", err)
	}
	return t, true, nil
}

func (s *SQLite) List(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM download_tasks ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return tasks, nil
}

// DeleteOlderThan removes terminal tasks whose last update is older than age.
func (s *SQLite) DeleteOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age).UnixMilli()
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM download_tasks
		WHERE status IN (?, ?, ?) AND updated_at < ?`,
		string(task.StateCompleted), string(task.StateFailed), string(task.StateCancelled),
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("could not delete tasks: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}
	return int(rows), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (task.Task, error) {
	var (
		t                         task.Task
		status                    string
		audioOnly, directDownload int
		createdAt, updatedAt      int64
	)
	err := sc.Scan(
		&t.ID, &t.URL, &t.Options.Quality, &t.Options.Format,
		&audioOnly, &directDownload,
		&status, &t.Progress, &t.Filename, &t.ObjectName, &t.DownloadURL,
		&t.Size, &t.Error, &createdAt, &updatedAt,
	)
	if err != nil {
		return task.Task{}, err
	}
	t.Options.AudioOnly = audioOnly != 0
	t.Options.DirectDownload = directDownload != 0
	t.State = task.State(status)
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	t.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
