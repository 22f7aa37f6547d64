package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/domain/notifications"
	"timetrack/internal/platform/email"
)

type run struct {
	OrgID   string
	Type    string
	Status  string
	Details map[string]any
}

type memoryRecorder struct {
	mu   sync.Mutex
	runs map[string]*run
	next int
}

func newRecorder() *memoryRecorder {
	return &memoryRecorder{runs: map[string]*run{}}
}

func (r *memoryRecorder) Begin(_ context.Context, orgID, jobType string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	id := string(rune('a' + r.next))
	r.runs[id] = &run{OrgID: orgID, Type: jobType, Status: StatusRunning}
	return id, nil
}

func (r *memoryRecorder) Finish(_ context.Context, runID, status string, details []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[runID].Status = status
	return json.Unmarshal(details, &r.runs[runID].Details)
}

func (r *memoryRecorder) all() []run {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]run, 0, len(r.runs))
	for _, v := range r.runs {
		out = append(out, *v)
	}
	return out
}

func TestRunNowRecordsOutcome(t *testing.T) {
	rec := newRecorder()
	svc := New(rec, 1)
	ctx := context.Background()

	details, err := svc.RunNow(ctx, JobReminders, "org-1", func(context.Context) (any, error) {
		return map[string]any{"remindersCreated": 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"remindersCreated": 2}, details)

	_, err = svc.RunNow(ctx, JobReminders, "org-2", func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	statuses := map[string]string{}
	for _, r := range rec.all() {
		statuses[r.OrgID] = r.Status
	}
	assert.Equal(t, StatusCompleted, statuses["org-1"])
	assert.Equal(t, StatusFailed, statuses["org-2"])
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	svc := New(nil, 1)
	noop := func(context.Context) (any, error) { return nil, nil }
	for i := 0; i < cap(svc.queue); i++ {
		require.True(t, svc.Enqueue(JobReminders, "", noop))
	}
	assert.False(t, svc.Enqueue(JobReminders, "", noop))
}

type fakeReminders struct {
	mu    sync.Mutex
	orgs  []string
	calls []string
}

func (f *fakeReminders) PendingOrganizations(context.Context) ([]string, error) {
	return f.orgs, nil
}

func (f *fakeReminders) RemindApprovers(_ context.Context, orgID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, orgID)
	return 1, nil
}

func (f *fakeReminders) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestEnqueueRemindersRunsPerOrganization(t *testing.T) {
	rec := newRecorder()
	svc := New(rec, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		svc.Wait()
	}()
	svc.Start(ctx)

	reminders := &fakeReminders{orgs: []string{"org-a", "org-b"}}
	svc.EnqueueReminders(ctx, reminders)

	require.Eventually(t, func() bool { return len(reminders.called()) == 2 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"org-a", "org-b"}, reminders.called())
	require.Eventually(t, func() bool {
		for _, r := range rec.all() {
			if r.Status != StatusCompleted {
				return false
			}
		}
		return len(rec.all()) == 2
	}, time.Second, 10*time.Millisecond)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Message(nil), m.sent...)
}

type staticAddresses map[string]string

func (a staticAddresses) EmailFor(_ context.Context, userID string) (string, error) {
	return a[userID], nil
}

func TestQueueOutboxSendsThroughCourier(t *testing.T) {
	svc := New(newRecorder(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		svc.Wait()
	}()
	svc.Start(ctx)

	mailer := &fakeMailer{}
	outbox := QueueOutbox{Jobs: svc, Courier: &Courier{
		Mailer:    mailer,
		Addresses: staticAddresses{"u-1": "eve@example.com"},
		From:      "no-reply@example.com",
	}}

	require.NoError(t, outbox.EnqueueEmail(ctx, notifications.Email{OrganizationID: "org", RecipientUserID: "u-1", Subject: "Timesheet approved", Body: "ok"}))
	require.NoError(t, outbox.EnqueueEmail(ctx, notifications.Email{OrganizationID: "org", RecipientUserID: "u-unknown", Subject: "x"}))

	require.Eventually(t, func() bool { return len(mailer.messages()) == 1 }, time.Second, 10*time.Millisecond)
	msg := mailer.messages()[0]
	assert.Equal(t, "eve@example.com", msg.To)
	assert.Equal(t, "no-reply@example.com", msg.From)
	assert.Equal(t, "Timesheet approved", msg.Subject)
}

func TestEmailWorkerHandlesTask(t *testing.T) {
	mailer := &fakeMailer{}
	w := &EmailWorker{jobs: New(nil, 1), courier: &Courier{
		Mailer:    mailer,
		Addresses: staticAddresses{"u-1": "eve@example.com"},
	}}

	task, err := NewEmailTask(notifications.Email{OrganizationID: "org", RecipientUserID: "u-1", Subject: "s", Body: "b"})
	require.NoError(t, err)
	require.NoError(t, w.HandleEmail(context.Background(), task))
	require.Len(t, mailer.messages(), 1)

	err = w.HandleEmail(context.Background(), asynq.NewTask(TypeNotificationEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
