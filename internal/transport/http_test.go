package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Wordite/tablecrm-t/internal/form"
	"github.com/Wordite/tablecrm-t/internal/handler"
	"github.com/Wordite/tablecrm-t/internal/session"
	"github.com/Wordite/tablecrm-t/internal/tablecrm"
)

func newTestRouter() http.Handler {
	client := tablecrm.NewClient("http://127.0.0.1:0", 0)
	svc := form.NewService(client, client, session.NewRegistry(), form.Options{})
	return NewRouter(handler.NewFormHandler(svc))
}

func TestNewRouter(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "health",
			method:         http.MethodGet,
			path:           "/health",
			expectedStatus: http.StatusOK,
			expectedBody:   "OK",
		},
		{
			name:           "create_session",
			method:         http.MethodPost,
			path:           "/sessions",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "unknown_route",
			method:         http.MethodGet,
			path:           "/orders",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "wrong_method",
			method:         http.MethodPut,
			path:           "/sessions",
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	r := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.Equal(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}
