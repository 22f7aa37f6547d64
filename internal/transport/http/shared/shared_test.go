package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/platform/apperr"
)

type registerPayload struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"required,max=200"`
}

func TestDecodeAndValidateReportsJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","password":"short"}`))
	var p registerPayload
	err := DecodeAndValidate(req, &p)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, []string{"displayName", "email", "password"}, appErr.FieldNames())
	assert.Equal(t, []string{"must be at least 8 characters"}, appErr.Fields["password"])
}

func TestDecodeRejectsUnknownFieldsAndBadTypes(t *testing.T) {
	var p registerPayload
	err := Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"emial":"a@b.c"}`)), &p)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	err = Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":5}`)), &p)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "email")
}

func TestDecodeEmptyBody(t *testing.T) {
	var p struct {
		Comment string `json:"comment"`
	}
	require.NoError(t, Decode(httptest.NewRequest(http.MethodPost, "/", nil), &p))
	assert.Empty(t, p.Comment)
}

func TestParseWeekRange(t *testing.T) {
	weeks, err := ParseWeekRange(httptest.NewRequest(http.MethodGet, "/?from=2026-01-05", nil))
	require.NoError(t, err)
	require.NotNil(t, weeks.From)
	assert.Nil(t, weeks.To)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), *weeks.From)

	_, err = ParseWeekRange(httptest.NewRequest(http.MethodGet, "/?to=05/01/2026", nil))
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "to")
}

func TestParsePaginationClamps(t *testing.T) {
	p := ParsePagination(httptest.NewRequest(http.MethodGet, "/?limit=900&offset=-3", nil), 50, 200)
	assert.Equal(t, Pagination{Limit: 200, Offset: 0}, p)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}
