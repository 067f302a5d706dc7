// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// AppendAttempt records one download try. History rows are append-only:
// retries, failures, and successes all get their own row.
func (s *Store) AppendAttempt(ctx context.Context, a types.DownloadAttempt) error {
	at := a.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO download_history
			(identifier_key, url, source, status, error_message, attempt_number, file_path, file_size, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.IdentifierKey, a.URL, a.Source, string(a.Status), a.Error,
		a.AttemptNumber, a.FilePath, a.FileSize, at.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording download attempt for %s: %w", a.IdentifierKey, err)
	}
	return nil
}

// HistoryFor returns every recorded attempt for a publication, oldest
// first.
func (s *Store) HistoryFor(ctx context.Context, key string) ([]types.DownloadAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, source, status, error_message, attempt_number, file_path, file_size, downloaded_at
		FROM download_history WHERE identifier_key = ? ORDER BY id`, key)
	if err != nil {
		return nil, fmt.Errorf("reading download history for %s: %w", key, err)
	}
	defer rows.Close()

	var attempts []types.DownloadAttempt
	for rows.Next() {
		var (
			a                    types.DownloadAttempt
			source, errMsg, path sql.NullString
			size                 sql.NullInt64
			status, at           string
		)
		if err := rows.Scan(&a.URL, &source, &status, &errMsg, &a.AttemptNumber, &path, &size, &at); err != nil {
			return nil, fmt.Errorf("scanning download history for %s: %w", key, err)
		}
		a.IdentifierKey = key
		a.Source = source.String
		a.Status = types.AttemptStatus(status)
		a.Error = errMsg.String
		a.FilePath = path.String
		a.FileSize = size.Int64
		a.At, _ = time.Parse(time.RFC3339, at)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
