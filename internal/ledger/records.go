package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CompressionStatus is the final state of a compression job.
type CompressionStatus string

const (
	CompressionSucceeded CompressionStatus = "succeeded"
	CompressionFailed    CompressionStatus = "failed"
	CompressionSkipped   CompressionStatus = "skipped"
)

// Compression is one finished compression job.
type Compression struct {
	ID            int64
	Source        string
	Target        string
	Status        CompressionStatus
	Reasons       []string
	CRF           int
	Preset        string
	SourceBytes   int64
	TargetBytes   int64
	DurationDelta float64
	SourceDeleted bool
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Ratio returns target size as a fraction of source size, or 0 when unknown.
func (c Compression) Ratio() float64 {
	if c.SourceBytes <= 0 || c.TargetBytes <= 0 {
		return 0
	}
	return float64(c.TargetBytes) / float64(c.SourceBytes)
}

// RecordCompression appends a finished compression job and returns its row ID.
func (s *Store) RecordCompression(ctx context.Context, job Compression) (int64, error) {
	var reasons sql.NullString
	if len(job.Reasons) > 0 {
		reasons = sql.NullString{String: strings.Join(job.Reasons, ","), Valid: true}
	}
	deleted := 0
	if job.SourceDeleted {
		deleted = 1
	}
	res, err := s.exec(ctx,
		`INSERT INTO compressions (source_path, target_path, status, reasons, crf, preset, source_bytes, target_bytes,
		 duration_delta, source_deleted, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.Source, job.Target, string(job.Status), reasons,
		job.CRF, job.Preset, job.SourceBytes, job.TargetBytes, job.DurationDelta,
		deleted, job.StartedAt.UTC().Format(time.RFC3339Nano), job.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("record compression %s: %w", job.Source, err)
	}
	return res.LastInsertId()
}

// RecentCompressions returns up to limit jobs, newest first. A non-positive
// limit means 20.
func (s *Store) RecentCompressions(ctx context.Context, limit int) ([]Compression, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_path, target_path, status, reasons, crf, preset, source_bytes, target_bytes,
		 duration_delta, source_deleted, started_at, finished_at
		 FROM compressions ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query compressions: %w", err)
	}
	defer rows.Close()

	var out []Compression
	for rows.Next() {
		var (
			job               Compression
			status            string
			reasons           sql.NullString
			deleted           int
			started, finished string
		)
		if err := rows.Scan(&job.ID, &job.Source, &job.Target, &status, &reasons, &job.CRF, &job.Preset,
			&job.SourceBytes, &job.TargetBytes, &job.DurationDelta, &deleted, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan compression: %w", err)
		}
		job.Status = CompressionStatus(status)
		if reasons.String != "" {
			job.Reasons = strings.Split(reasons.String, ",")
		}
		job.SourceDeleted = deleted != 0
		job.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		job.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, job)
	}
	return out, rows.Err()
}
