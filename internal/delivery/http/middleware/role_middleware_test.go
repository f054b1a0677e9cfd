package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"healconnect/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func serveWithRole(mw func(http.Handler) http.Handler, roleID *int) int {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit-logs", nil)
	if roleID != nil {
		req = req.WithContext(WithPrincipal(req.Context(), uuid.New(), *roleID))
	}
	rec := httptest.NewRecorder()
	mw(ok).ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAdmin(t *testing.T) {
	admin, doctor, patient := entity.RoleIDAdmin, entity.RoleIDDoctor, entity.RoleIDPatient

	assert.Equal(t, http.StatusNoContent, serveWithRole(RequireAdmin, &admin))
	assert.Equal(t, http.StatusForbidden, serveWithRole(RequireAdmin, &doctor))
	assert.Equal(t, http.StatusForbidden, serveWithRole(RequireAdmin, &patient))
	assert.Equal(t, http.StatusUnauthorized, serveWithRole(RequireAdmin, nil))
}

func TestRequireAdminOrDoctor(t *testing.T) {
	admin, doctor, patient := entity.RoleIDAdmin, entity.RoleIDDoctor, entity.RoleIDPatient

	assert.Equal(t, http.StatusNoContent, serveWithRole(RequireAdminOrDoctor, &admin))
	assert.Equal(t, http.StatusNoContent, serveWithRole(RequireAdminOrDoctor, &doctor))
	assert.Equal(t, http.StatusForbidden, serveWithRole(RequireAdminOrDoctor, &patient))
}
