package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/platform/apperr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestFailErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.Validation("work_date_required", "x"), http.StatusBadRequest, "work_date_required"},
		{apperr.Unauthorized("invalid_credentials", "x"), http.StatusUnauthorized, "invalid_credentials"},
		{apperr.Forbidden("not_a_member", "x"), http.StatusForbidden, "not_a_member"},
		{apperr.NotFound("timesheet_not_found", "x"), http.StatusNotFound, "timesheet_not_found"},
		{apperr.Conflict("invalid_state", "x"), http.StatusConflict, "invalid_state"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			FailError(rec, req, tc.err, "req-1")

			assert.Equal(t, tc.status, rec.Code)
			env := decode(t, rec)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
			assert.Equal(t, "req-1", env.RequestID)
		})
	}
}

func TestFailErrorCarriesFields(t *testing.T) {
	rec := httptest.NewRecorder()
	err := apperr.Validation("name_required", "name is required").WithField("name", "required")
	FailError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err, "")

	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, map[string][]string{"name": {"required"}}, env.Error.Fields)
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	FailError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("password=hunter2"), "")
	assert.NotContains(t, rec.Body.String(), "hunter2")
}
