package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"timetrack/internal/domain/notifications"
	"timetrack/internal/platform/db"
	"timetrack/internal/platform/email"
	"timetrack/internal/platform/querier"
)

const TypeNotificationEmail = "email:notification"

var ErrQueueFull = errors.New("job queue full")

// Addresses resolves a recipient's email address. An empty address means
// the user has none and the email is skipped.
type Addresses interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}

type PGAddresses struct {
	DB querier.Querier
}

func (a PGAddresses) EmailFor(ctx context.Context, userID string) (string, error) {
	var address string
	err := a.DB.QueryRow(ctx, `SELECT email FROM users WHERE id = $1 AND is_active`, userID).Scan(&address)
	if db.IsNoRows(err) {
		return "", nil
	}
	return address, err
}

// Courier turns a notification email into a sent message.
type Courier struct {
	Mailer    email.Mailer
	Addresses Addresses
	From      string
}

func (c *Courier) Send(ctx context.Context, e notifications.Email) (any, error) {
	to, err := c.Addresses.EmailFor(ctx, e.RecipientUserID)
	if err != nil {
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}
	if to == "" {
		return map[string]any{"skipped": "no address"}, nil
	}
	if err := c.Mailer.Send(ctx, email.Message{From: c.From, To: to, Subject: e.Subject, Body: e.Body}); err != nil {
		return nil, err
	}
	return map[string]any{"recipientUserId": e.RecipientUserID}, nil
}

// QueueOutbox sends notification emails on the in-process queue.
type QueueOutbox struct {
	Jobs    *Service
	Courier *Courier
}

func (o QueueOutbox) EnqueueEmail(_ context.Context, e notifications.Email) error {
	if !o.Jobs.Enqueue(JobNotificationEmail, e.OrganizationID, func(ctx context.Context) (any, error) {
		return o.Courier.Send(ctx, e)
	}) {
		return ErrQueueFull
	}
	return nil
}

// AsynqOutbox hands notification emails to Redis-backed asynq workers.
type AsynqOutbox struct {
	client *asynq.Client
}

func NewAsynqOutbox(opt asynq.RedisClientOpt) *AsynqOutbox {
	return &AsynqOutbox{client: asynq.NewClient(opt)}
}

func (o *AsynqOutbox) Close() error {
	return o.client.Close()
}

func (o *AsynqOutbox) EnqueueEmail(ctx context.Context, e notifications.Email) error {
	task, err := NewEmailTask(e)
	if err != nil {
		return err
	}
	if _, err := o.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		log.Warn().Err(err).Str("recipientUserId", e.RecipientUserID).Msg("enqueue notification email failed")
		return err
	}
	return nil
}

func NewEmailTask(e notifications.Email) (*asynq.Task, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotificationEmail, payload), nil
}

// EmailWorker consumes notification email tasks and records each delivery
// as a job run.
type EmailWorker struct {
	srv     *asynq.Server
	mux     *asynq.ServeMux
	jobs    *Service
	courier *Courier
}

func NewEmailWorker(opt asynq.RedisClientOpt, jobs *Service, courier *Courier) *EmailWorker {
	w := &EmailWorker{
		srv: asynq.NewServer(opt, asynq.Config{
			Concurrency: 2,
			LogLevel:    asynq.WarnLevel,
		}),
		mux:     asynq.NewServeMux(),
		jobs:    jobs,
		courier: courier,
	}
	w.mux.HandleFunc(TypeNotificationEmail, w.HandleEmail)
	return w
}

func (w *EmailWorker) HandleEmail(ctx context.Context, t *asynq.Task) error {
	var e notifications.Email
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		log.Error().Err(err).Msg("notification email payload invalid")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	_, err := w.jobs.RunNow(ctx, JobNotificationEmail, e.OrganizationID, func(ctx context.Context) (any, error) {
		return w.courier.Send(ctx, e)
	})
	return err
}

func (w *EmailWorker) Run() error {
	return w.srv.Run(w.mux)
}

func (w *EmailWorker) Shutdown() {
	w.srv.Shutdown()
}
