package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wordite/tablecrm-t/internal/form"
	"github.com/Wordite/tablecrm-t/internal/session"
	"github.com/Wordite/tablecrm-t/internal/tablecrm"
)

// fakeTableCRM serves canned catalog answers and records submitted sales.
type fakeTableCRM struct {
	mu        sync.Mutex
	sales     [][]map[string]any
	saleCode  int
	failPaths map[string]bool
}

func (f *fakeTableCRM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != "abc" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.failPaths[r.URL.Path] {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"boom"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case tablecrm.PathContragents:
		_, _ = w.Write([]byte(`{"result":[{"id":11,"name":"Ivan","phone":"79991234567"}]}`))
	case tablecrm.PathPayboxes:
		_, _ = w.Write([]byte(`[{"id":1,"name":"Cash"}]`))
	case tablecrm.PathOrganizations:
		_, _ = w.Write([]byte(`{"results":[{"id":2,"work_name":"Shop"},{"id":3}]}`))
	case tablecrm.PathWarehouses:
		_, _ = w.Write([]byte(`{"result":[{"id":4,"name":"Main"}]}`))
	case tablecrm.PathPriceTypes:
		_, _ = w.Write([]byte(`[{"id":5,"name":"Retail"}]`))
	case tablecrm.PathNomenclature:
		_, _ = w.Write([]byte(`{"result":[{"id":7,"name":"Coffee","price":120,"unit":"116"}]}`))
	case tablecrm.PathDocsSales:
		body, _ := io.ReadAll(r.Body)
		var docs []map[string]any
		_ = json.Unmarshal(body, &docs)
		f.mu.Lock()
		f.sales = append(f.sales, docs)
		code := f.saleCode
		f.mu.Unlock()
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`[{"id":501}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testAPI struct {
	t      *testing.T
	router chi.Router
	remote *fakeTableCRM
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	remote := &fakeTableCRM{failPaths: map[string]bool{}}
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	client := tablecrm.NewClient(srv.URL, 2*time.Second)
	svc := form.NewService(client, client, session.NewRegistry(), form.Options{
		Now: func() time.Time { return time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC) },
	})
	r := chi.NewRouter()
	NewFormHandler(svc).RegisterRoutes(r)
	return &testAPI{t: t, router: r, remote: remote}
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) createSession() string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/sessions", "")
	require.Equal(a.t, http.StatusCreated, w.Code)
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return "/sessions/" + resp.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestFormHandler_CreateSession(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decode(t, w)
	assert.NotEmpty(t, body["id"])
	state := body["state"].(map[string]any)
	assert.Equal(t, []any{}, state["items"])
	assert.Equal(t, 0.0, state["total"])
	assert.Equal(t, false, state["ready"])
}

func TestFormHandler_SessionErrors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
	}{
		{
			name:           "invalid_id",
			method:         http.MethodGet,
			path:           "/sessions/not-a-uuid",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown_session",
			method:         http.MethodGet,
			path:           "/sessions/550e8400-e29b-41d4-a716-446655440000",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unknown_session_lookup",
			method:         http.MethodGet,
			path:           "/sessions/550e8400-e29b-41d4-a716-446655440000/payboxes",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unknown_session_delete",
			method:         http.MethodDelete,
			path:           "/sessions/550e8400-e29b-41d4-a716-446655440000",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, decode(t, w), "error")
		})
	}
}

func TestFormHandler_Validation(t *testing.T) {
	api := newTestAPI(t)
	base := api.createSession()

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
		expectedDetail map[string]any
	}{
		{
			name:           "missing_value",
			method:         http.MethodPut,
			path:           "/phone",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: map[string]any{"value": "is required"},
		},
		{
			name:           "unknown_body_field",
			method:         http.MethodPut,
			path:           "/phone",
			body:           `{"phone":"1"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid_json",
			method:         http.MethodPut,
			path:           "/comment",
			body:           `{invalid json}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown_item_field",
			method:         http.MethodPatch,
			path:           "/items/7",
			body:           `{"field":"comment","value":1}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: map[string]any{"field": "must be one of: quantity price discount"},
		},
		{
			name:           "negative_quantity",
			method:         http.MethodPatch,
			path:           "/items/7",
			body:           `{"field":"quantity","value":-5}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: map[string]any{"value": "must be greater than 0"},
		},
		{
			name:           "zero_quantity",
			method:         http.MethodPatch,
			path:           "/items/7",
			body:           `{"field":"quantity","value":0}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: map[string]any{"value": "must be greater than 0"},
		},
		{
			name:           "negative_price",
			method:         http.MethodPatch,
			path:           "/items/7",
			body:           `{"field":"price","value":-100}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: map[string]any{"value": "must be at least 0"},
		},
		{
			name:           "negative_discount",
			method:         http.MethodPatch,
			path:           "/items/7",
			body:           `{"field":"discount","value":-3}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: map[string]any{"value": "must be at least 0"},
		},
		{
			name:           "huge_quantity",
			method:         http.MethodPatch,
			path:           "/items/7",
			body:           `{"field":"quantity","value":1e308}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: map[string]any{"value": "must be at most 1000000000"},
		},
		{
			name:           "huge_price",
			method:         http.MethodPatch,
			path:           "/items/7",
			body:           `{"field":"price","value":1e10}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: map[string]any{"value": "must be at most 1000000000"},
		},
		{
			name:           "bad_product_id",
			method:         http.MethodDelete,
			path:           "/items/abc",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown_selection",
			method:         http.MethodPut,
			path:           "/selections/currency",
			body:           `{"id":1}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "negative_selection",
			method:         http.MethodPut,
			path:           "/selections/paybox",
			body:           `{"id":-1}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: map[string]any{"id": "must be greater than 0"},
		},
		{
			name:           "missing_commit",
			method:         http.MethodPost,
			path:           "/submit",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: map[string]any{"commit": "is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(tt.method, base+tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
			body := decode(t, w)
			if tt.expectedDetail != nil {
				assert.Equal(t, tt.expectedDetail, body["details"])
			}
		})
	}
}

func TestFormHandler_UpdateItemBounds(t *testing.T) {
	api := newTestAPI(t)
	base := api.createSession()

	api.do(http.MethodPut, base+"/token-input", `{"value":"abc"}`)
	api.do(http.MethodPost, base+"/token/apply", "")
	api.do(http.MethodPut, base+"/product-search", `{"value":"coffee"}`)
	api.do(http.MethodGet, base+"/products", "")
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, base+"/items", `{"product_id":7}`).Code)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedTotal  float64
	}{
		{name: "negative_quantity", body: `{"field":"quantity","value":-5}`, expectedStatus: http.StatusBadRequest, expectedTotal: 120},
		{name: "huge_quantity", body: `{"field":"quantity","value":1e308}`, expectedStatus: http.StatusBadRequest, expectedTotal: 120},
		{name: "huge_price", body: `{"field":"price","value":1e308}`, expectedStatus: http.StatusBadRequest, expectedTotal: 120},
		{name: "fractional_quantity", body: `{"field":"quantity","value":0.5}`, expectedStatus: http.StatusOK, expectedTotal: 60},
		{name: "zero_discount", body: `{"field":"discount","value":0}`, expectedStatus: http.StatusOK, expectedTotal: 60},
		{name: "max_quantity", body: `{"field":"quantity","value":1000000000}`, expectedStatus: http.StatusOK, expectedTotal: 120000000000},
		{name: "zero_price", body: `{"field":"price","value":0}`, expectedStatus: http.StatusOK, expectedTotal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPatch, base+"/items/7", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			// The session stays readable and rejected edits leave it untouched.
			w = api.do(http.MethodGet, base, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.expectedTotal, decode(t, w)["total"])
		})
	}
}

func TestFormHandler_LookupsDisabledWithoutToken(t *testing.T) {
	api := newTestAPI(t)
	base := api.createSession()

	w := api.do(http.MethodGet, base+"/warehouses", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["enabled"])
	assert.Equal(t, []any{}, body["items"])
}

func TestFormHandler_OrderFlow(t *testing.T) {
	api := newTestAPI(t)
	base := api.createSession()

	require.Equal(t, http.StatusOK, api.do(http.MethodPut, base+"/token-input", `{"value":" abc "}`).Code)
	w := api.do(http.MethodPost, base+"/token/apply", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", decode(t, w)["token"])

	// Phone lookup and client pick.
	require.Equal(t, http.StatusOK, api.do(http.MethodPut, base+"/phone", `{"value":"79991234567"}`).Code)
	w = api.do(http.MethodGet, base+"/clients", "")
	require.Equal(t, http.StatusOK, w.Code)
	clients := decode(t, w)
	assert.Equal(t, true, clients["enabled"])
	assert.Len(t, clients["items"], 1)

	w = api.do(http.MethodPost, base+"/client", `{"id":11}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 11.0, decode(t, w)["client_id"])

	w = api.do(http.MethodPost, base+"/client", `{"id":12}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Reference lists.
	w = api.do(http.MethodGet, base+"/organizations", "")
	require.Equal(t, http.StatusOK, w.Code)
	orgs := decode(t, w)["items"].([]any)
	require.Len(t, orgs, 2)
	assert.Equal(t, "Shop", orgs[0].(map[string]any)["display_name"])
	assert.Equal(t, "Организация #3", orgs[1].(map[string]any)["display_name"])

	for _, path := range []string{"/payboxes", "/warehouses", "/price-types"} {
		w = api.do(http.MethodGet, base+path, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Len(t, decode(t, w)["items"], 1, path)
	}

	for field, id := range map[string]int{"paybox": 1, "organization": 2, "warehouse": 4, "price_type": 5} {
		w = api.do(http.MethodPut, base+"/selections/"+field, `{"id":`+jsonInt(id)+`}`)
		require.Equal(t, http.StatusOK, w.Code, field)
	}

	// Products.
	require.Equal(t, http.StatusOK, api.do(http.MethodPut, base+"/product-search", `{"value":"co"}`).Code)
	w = api.do(http.MethodGet, base+"/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	w = api.do(http.MethodPost, base+"/items", `{"product_id":9}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, base+"/items", `{"product_id":7}`).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, base+"/items", `{"product_id":7}`).Code)
	w = api.do(http.MethodPatch, base+"/items/7", `{"field":"discount","value":40}`)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode(t, w)
	assert.Equal(t, 200.0, state["total"])
	assert.Equal(t, true, state["ready"])

	// Submit and commit.
	w = api.do(http.MethodPost, base+"/submit", `{"commit":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"commit":true,"response":[{"id":501}]}`, w.Body.String())

	require.Len(t, api.remote.sales, 1)
	require.Len(t, api.remote.sales[0], 1)
	doc := api.remote.sales[0][0]
	assert.Equal(t, "Заказ", doc["operation"])
	assert.Equal(t, 200.0, doc["paid_rubles"])
	assert.Equal(t, 11.0, doc["contragent"])
	assert.Equal(t, true, doc["status"])
	goods := doc["goods"].([]any)
	require.Len(t, goods, 1)
	good := goods[0].(map[string]any)
	assert.Equal(t, "7", good["nomenclature"])
	assert.Equal(t, 80.0, good["sum_discounted"])
	assert.Equal(t, 116.0, good["unit"])

	w = api.do(http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	state = decode(t, w)
	assert.Equal(t, "abc", state["token"])
	assert.Equal(t, []any{}, state["items"])
	assert.Nil(t, state["paybox_id"])
}

func TestFormHandler_SubmitIncomplete(t *testing.T) {
	api := newTestAPI(t)
	base := api.createSession()

	api.do(http.MethodPut, base+"/token-input", `{"value":"abc"}`)
	api.do(http.MethodPost, base+"/token/apply", "")
	api.do(http.MethodPut, base+"/selections/paybox", `{"id":1}`)

	w := api.do(http.MethodPost, base+"/submit", `{"commit":false}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"Sale is incomplete","missing":["organization","warehouse","items"]}`, w.Body.String())
	assert.Empty(t, api.remote.sales)
}

func TestFormHandler_RemoteFailures(t *testing.T) {
	api := newTestAPI(t)
	base := api.createSession()

	api.do(http.MethodPut, base+"/token-input", `{"value":"abc"}`)
	api.do(http.MethodPost, base+"/token/apply", "")

	api.remote.failPaths[tablecrm.PathPayboxes] = true
	w := api.do(http.MethodGet, base+"/payboxes", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"tablecrm responded with status 500"}`, w.Body.String())

	// A rejected sale keeps the form intact.
	api.do(http.MethodPut, base+"/product-search", `{"value":"coffee"}`)
	api.do(http.MethodGet, base+"/products", "")
	api.do(http.MethodPost, base+"/items", `{"product_id":7}`)
	for _, field := range []string{"paybox", "organization", "warehouse", "price_type"} {
		api.do(http.MethodPut, base+"/selections/"+field, `{"id":1}`)
	}
	api.remote.saleCode = http.StatusBadRequest

	w = api.do(http.MethodPost, base+"/submit", `{"commit":true}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = api.do(http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)
}

func TestFormHandler_ResetAndDelete(t *testing.T) {
	api := newTestAPI(t)
	base := api.createSession()

	api.do(http.MethodPut, base+"/comment", `{"value":"call first"}`)
	api.do(http.MethodPut, base+"/selections/warehouse", `{"id":4}`)

	w := api.do(http.MethodPut, base+"/selections/warehouse", `{"id":null}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["warehouse_id"])

	w = api.do(http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", decode(t, w)["comment"])

	w = api.do(http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, base, "").Code)
}

func jsonInt(v int) string {
	b, _ := json.Marshal(v)
	return string(b)
}
