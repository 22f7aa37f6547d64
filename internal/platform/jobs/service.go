package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"timetrack/internal/platform/metrics"
)

const (
	JobReminders         = "timesheet_reminders"
	JobNotificationEmail = "notification_email"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type RunFunc func(context.Context) (any, error)

type Service struct {
	recorder Recorder
	queue    chan job
	workers  int
	wg       sync.WaitGroup
}

type job struct {
	Type  string
	OrgID string
	Run   RunFunc
}

func New(recorder Recorder, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		recorder: recorder,
		queue:    make(chan job, 128),
		workers:  workers,
	}
}

// Start launches the workers. They exit when ctx is cancelled; Wait blocks
// until they have.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker(ctx)
		}()
	}
}

func (s *Service) Wait() {
	s.wg.Wait()
}

// Enqueue never blocks; a full queue drops the job with a warning.
func (s *Service) Enqueue(jobType, orgID string, run RunFunc) bool {
	select {
	case s.queue <- job{Type: jobType, OrgID: orgID, Run: run}:
		return true
	default:
		log.Warn().Str("jobType", jobType).Str("organizationId", orgID).Msg("job queue full")
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, orgID string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, OrgID: orgID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				log.Warn().Err(err).Str("jobType", j.Type).Str("organizationId", j.OrgID).Msg("job run failed")
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.recorder != nil {
		id, err := s.recorder.Begin(ctx, j.OrgID, j.Type)
		if err != nil {
			log.Warn().Err(err).Str("jobType", j.Type).Msg("job run insert failed")
		}
		runID = id
	}

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		details = map[string]any{"error": err.Error(), "details": details}
	}
	metrics.JobRun(j.Type, status)

	if runID != "" {
		detailsJSON, marshalErr := json.Marshal(details)
		if marshalErr != nil {
			log.Warn().Err(marshalErr).Msg("job details marshal failed")
			detailsJSON = []byte("{}")
		}
		if updErr := s.recorder.Finish(context.WithoutCancel(ctx), runID, status, detailsJSON); updErr != nil {
			log.Warn().Err(updErr).Str("runId", runID).Msg("job run update failed")
		}
	}
	return details, err
}

// Reminders is the part of the notification service the scheduler drives.
type Reminders interface {
	PendingOrganizations(ctx context.Context) ([]string, error)
	RemindApprovers(ctx context.Context, orgID string) (int, error)
}

// ScheduleReminders enqueues one reminder run per organization with
// submitted timesheets on every tick.
func (s *Service) ScheduleReminders(ctx context.Context, interval time.Duration, reminders Reminders) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EnqueueReminders(ctx, reminders)
		}
	}
}

func (s *Service) EnqueueReminders(ctx context.Context, reminders Reminders) {
	orgs, err := reminders.PendingOrganizations(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("reminder scheduler organization lookup failed")
		return
	}
	for _, orgID := range orgs {
		org := orgID
		s.Enqueue(JobReminders, org, func(ctx context.Context) (any, error) {
			sent, err := reminders.RemindApprovers(ctx, org)
			return map[string]any{"remindersCreated": sent}, err
		})
	}
}
