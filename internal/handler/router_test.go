package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type staticVerifier map[string]models.UserRole

func (v staticVerifier) ValidateToken(raw string) (*models.JWTClaims, error) {
	role, ok := v[raw]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{UserID: raw, Role: role}, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Register(r, "/api/v1", Routes{
		Timetables: NewTimetableHandler(&timetableManagerMock{
			detail: &dto.TimetableDetail{Timetable: models.Timetable{ID: "tt-1"}},
			list:   []models.Timetable{},
		}, &dayViewerMock{}, &exporterMock{}),
		Slots:     NewSlotHandler(&slotSchedulerMock{}),
		Schedules: NewScheduleViewHandler(&scheduleViewerMock{}),
		Metrics:   NewMetricsHandler(service.NewMetricsService(), nil),
		Tokens: staticVerifier{
			"admin-token":   models.RoleAdmin,
			"teacher-token": models.RoleTeacher,
		},
	})
	return r
}

func TestRouterAuthorization(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
	}{
		{"health is public", http.MethodGet, "/health", "", "", http.StatusOK},
		{"missing token", http.MethodGet, "/api/v1/timetables", "", "", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/api/v1/timetables", "forged", "", http.StatusUnauthorized},
		{"teacher can read", http.MethodGet, "/api/v1/timetables", "teacher-token", "", http.StatusOK},
		{"teacher cannot create", http.MethodPost, "/api/v1/timetables", "teacher-token", `{"class_section_id":"class-10a"}`, http.StatusForbidden},
		{"teacher cannot touch slots", http.MethodDelete, "/api/v1/slots/slot-1", "teacher-token", "", http.StatusForbidden},
		{"admin can create", http.MethodPost, "/api/v1/timetables", "admin-token", `{"class_section_id":"class-10a"}`, http.StatusCreated},
		{"admin removes slot", http.MethodDelete, "/api/v1/slots/slot-1", "admin-token", "", http.StatusNoContent},
		{"summary needs manager", http.MethodGet, "/api/v1/metrics/summary", "teacher-token", "", http.StatusForbidden},
		{"teacher reads own agenda", http.MethodGet, "/api/v1/teachers/teacher-1/schedule", "teacher-token", "", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
