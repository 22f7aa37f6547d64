package notificationshandler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/domain/auth"
	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/notifications"
	"timetrack/internal/testsupport/memdb"
	"timetrack/internal/transport/http/middleware"
)

func markReadBody(t *testing.T, n int) string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	raw, err := json.Marshal(map[string][]string{"ids": ids})
	require.NoError(t, err)
	return string(raw)
}

func TestMarkReadCapMatchesService(t *testing.T) {
	db := memdb.New()
	org := db.AddOrganization()
	user := db.AddUser("employee@example.com", "Eve Employee")
	db.AddMember(org, user, membership.RoleEmployee)

	h := NewHandler(notifications.New(db.NotificationStore(), notifications.NewDispatcher(nil)))
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Route("/organizations/{orgID}", h.RegisterRoutes)

	post := func(body string) (*httptest.ResponseRecorder, map[string]any) {
		req := httptest.NewRequest(http.MethodPost, "/organizations/"+org+"/notifications/read", strings.NewReader(body))
		req = req.WithContext(middleware.WithUser(req.Context(), auth.UserContext{UserID: user}))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return rec, out
	}

	rec, out := post(markReadBody(t, notifications.MaxTake))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 0, out["data"].(map[string]any)["updated"])

	rec, out = post(markReadBody(t, notifications.MaxTake+1))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	fields := out["error"].(map[string]any)["fields"].(map[string]any)
	assert.Contains(t, fields, "ids")
}
