package jobs

import (
	"context"

	"timetrack/internal/platform/querier"
)

// Recorder persists one job_runs row per run.
type Recorder interface {
	Begin(ctx context.Context, orgID, jobType string) (string, error)
	Finish(ctx context.Context, runID, status string, details []byte) error
}

type PGRecorder struct {
	DB querier.Querier
}

func (r PGRecorder) Begin(ctx context.Context, orgID, jobType string) (string, error) {
	var id string
	var org *string
	if orgID != "" {
		org = &orgID
	}
	err := r.DB.QueryRow(ctx, `
    INSERT INTO job_runs (organization_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, org, jobType, StatusRunning).Scan(&id)
	return id, err
}

func (r PGRecorder) Finish(ctx context.Context, runID, status string, details []byte) error {
	_, err := r.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, details, runID)
	return err
}
