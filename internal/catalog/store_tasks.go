package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gazetteer/internal/identity"
)

// NewTask enqueues a capture task for a known location. The URL must be
// absolute http(s) and the location must already exist.
func (s *Store) NewTask(ctx context.Context, locationID, rawURL, title, description string) (*Task, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	location, err := s.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, fmt.Errorf("location %q not found", locationID)
	}

	id, err := identity.UniqueRandom(ctx, identity.RandomLength, s.TaskIDExists)
	if err != nil {
		return nil, fmt.Errorf("mint task id: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO capture_tasks (
            id, loc_id, url, title, description, status,
            retry_count, extracted_count, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		id,
		locationID,
		rawURL,
		nullableString(title),
		nullableString(description),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetTask(ctx, id)
}

// GetTask fetches a capture task by identifier.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM capture_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// FindTaskByURL returns the first task for a location matching a URL.
func (s *Store) FindTaskByURL(ctx context.Context, locationID, rawURL string) (*Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+taskColumns+` FROM capture_tasks WHERE loc_id = ? AND url = ? ORDER BY created_at LIMIT 1`,
		locationID,
		rawURL,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find task by url: %w", err)
	}
	return task, nil
}

// ClaimPending atomically claims up to batch pending tasks for an archive
// pass. A claim is a lease, not a state change: claimed rows stay pending so
// a crash before completion leaves nothing stranded, and leases older than
// the expiry are claimable again.
func (s *Store) ClaimPending(ctx context.Context, batch int, lease time.Duration) ([]*Task, error) {
	if batch <= 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	cutoff := now.Add(-lease).Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(
		ctx,
		`SELECT id FROM capture_tasks
         WHERE status = ? AND (claimed_at IS NULL OR claimed_at < ?)
         ORDER BY created_at LIMIT ?`,
		StatusPending,
		cutoff,
		batch,
	)
	if err != nil {
		return nil, fmt.Errorf("select claimable tasks: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan claimable id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, now.Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE capture_tasks SET claimed_at = ? WHERE id IN (`+placeholders+`)`,
		args...,
	); err != nil {
		return nil, fmt.Errorf("claim tasks: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		task, err := s.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if task != nil {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// MarkArchiving records a successful capture. Status and snapshot identifier
// change in one statement so no observer sees one without the other.
func (s *Store) MarkArchiving(ctx context.Context, id, snapshotID string) error {
	if snapshotID == "" {
		return errors.New("snapshot id is empty")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE capture_tasks
         SET status = ?, snapshot_id = ?, claimed_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusArchiving,
		snapshotID,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark archiving: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s is not pending", id)
	}
	return nil
}

// RecordCaptureFailure bumps the retry counter and releases the claim. The
// task fails permanently once the counter reaches maxRetries, otherwise it
// returns to the pending pool. Returns the task after the update.
func (s *Store) RecordCaptureFailure(ctx context.Context, id string, maxRetries int) (*Task, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE capture_tasks
         SET retry_count = retry_count + 1,
             status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END,
             claimed_at = NULL,
             updated_at = ?
         WHERE id = ? AND status = ?`,
		maxRetries,
		StatusFailed,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("record capture failure: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("task %s is not pending", id)
	}
	return s.GetTask(ctx, id)
}

// ReleaseClaim clears a lease without touching retry state, for shutdowns
// mid-pass.
func (s *Store) ReleaseClaim(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE capture_tasks SET claimed_at = NULL WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// IncrementExtracted adds newly promoted media to the task's running total.
// The counter is additive so repeated extraction passes never lose count.
func (s *Store) IncrementExtracted(ctx context.Context, id string, count int) error {
	if count < 0 {
		return fmt.Errorf("extracted count delta %d is negative", count)
	}
	if count == 0 {
		return nil
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE capture_tasks SET extracted_count = extracted_count + ?, updated_at = ? WHERE id = ?`,
		count,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("increment extracted count: %w", err)
	}
	return nil
}

// SetTaskPageInfo backfills title and description discovered in the snapshot.
// Existing values set by the operator are not overwritten.
func (s *Store) SetTaskPageInfo(ctx context.Context, id, title, description string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE capture_tasks
         SET title = COALESCE(title, ?), description = COALESCE(description, ?), updated_at = ?
         WHERE id = ?`,
		nullableString(title),
		nullableString(description),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set task page info: %w", err)
	}
	return nil
}

// TasksByStatus returns tasks matching a status ordered by creation time.
// A positive limit bounds the batch; zero or negative means unbounded.
func (s *Store) TasksByStatus(ctx context.Context, status Status, limit int) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM capture_tasks WHERE status = ? ORDER BY created_at`
	args := []any{status}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ListTasks returns tasks filtered by status set (or all tasks when no status
// is provided).
func (s *Store) ListTasks(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM capture_tasks`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// RetryFailed moves failed tasks back to pending with a fresh retry budget.
// With no ids, all failed tasks are retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE capture_tasks
            SET status = ?, retry_count = 0, claimed_at = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed tasks: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed)
	query := `UPDATE capture_tasks
        SET status = ?, retry_count = 0, claimed_at = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = ?`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected tasks: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed tasks from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM capture_tasks WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// TaskStats returns a count of tasks grouped by status.
func (s *Store) TaskStats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM capture_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const taskColumns = "id, loc_id, url, title, description, status, snapshot_id, retry_count, extracted_count, claimed_at, created_at, updated_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id          string
		locID       string
		rawURL      string
		title       sql.NullString
		description sql.NullString
		statusStr   string
		snapshotID  sql.NullString
		retryCount  int
		extracted   int
		claimedRaw  sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&locID,
		&rawURL,
		&title,
		&description,
		&statusStr,
		&snapshotID,
		&retryCount,
		&extracted,
		&claimedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:             id,
		LocationID:     locID,
		URL:            rawURL,
		Title:          title.String,
		Description:    description.String,
		Status:         Status(statusStr),
		SnapshotID:     snapshotID.String,
		RetryCount:     retryCount,
		ExtractedCount: extracted,
	}
	if claimedRaw.Valid {
		if claimed, err := parseTimeString(claimedRaw.String); err == nil {
			task.ClaimedAt = &claimed
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}
