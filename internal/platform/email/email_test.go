package email

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/platform/config"
)

func TestBuildMessageStripsHeaderBreaks(t *testing.T) {
	raw := string(buildMessage(Message{
		From:    "no-reply@example.com",
		To:      "eve@example.com",
		Subject: "Timesheet rejected\r\nBcc: evil@example.com",
		Body:    "Please fix Tuesday.",
	}))

	head, body, ok := strings.Cut(raw, "\r\n\r\n")
	require.True(t, ok)
	assert.Equal(t, "Please fix Tuesday.", body)
	assert.Contains(t, head, "Subject: Timesheet rejected  Bcc: evil@example.com")
	assert.NotContains(t, head, "\r\nBcc:")
}

func TestNewFallsBackToNoop(t *testing.T) {
	m := New(config.Config{EmailEnabled: true})
	_, ok := m.(noopMailer)
	assert.True(t, ok)
	assert.NoError(t, m.Send(context.Background(), Message{To: "x@example.com"}))
}
