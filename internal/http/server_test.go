package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spendly/internal/auth"
	"spendly/internal/cache"
	"spendly/internal/core"
	applog "spendly/internal/log"
	"spendly/internal/services"
	"spendly/internal/storage/memory"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	store := memory.New()
	issuer := auth.NewIssuer("test-secret-0123456789", time.Hour)
	reports := services.NewReportService(store, cache.NewLRUCache[core.Stats](10, time.Minute))
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 1000
	}
	srv := NewServer(":0", Deps{
		Accounts: services.NewUserService(store, issuer),
		Expenses: services.NewExpenseService(store, nil, reports),
		Reports:  reports,
		Tokens:   issuer,
		Store:    store,
		Logger:   quietLogger(),
	}, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorBody](t, rr).Error
}

func register(t *testing.T, srv *Server, email string) string {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/api/users/register", "",
		fmt.Sprintf(`{"name":"Test","email":%q,"password":"pw","budget":1000}`, email))
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}
	return decode[authDTO](t, rr).Token
}

func createExpense(t *testing.T, srv *Server, token, body string) expenseDTO {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/api/expenses", token, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	return decode[expenseDTO](t, rr)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestUserFlow(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/users/register", "", `{"name":"Ann","email":"ann@example.com","password":"pw","budget":"1000"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}
	reg := decode[authDTO](t, rr)
	if reg.Token == "" || reg.User.Email != "ann@example.com" || reg.User.Budget != 1000 || reg.User.CreatedAt != nil {
		t.Fatalf("register body = %+v", reg)
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Fatal("credential leaked in response")
	}

	rr = do(t, srv, http.MethodPost, "/api/users/register", "", `{"name":"Ann","email":"ann@example.com","password":"x"}`)
	if rr.Code != http.StatusBadRequest || errorMessage(t, rr) != "User already exists with this email" {
		t.Fatalf("duplicate register status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/api/users/login", "", `{"email":"ann@example.com","password":"nope"}`)
	if rr.Code != http.StatusBadRequest || errorMessage(t, rr) != "Invalid credentials" {
		t.Fatalf("bad login status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/api/users/login", "", `{"email":"ann@example.com","password":"pw"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d", rr.Code)
	}
	token := decode[authDTO](t, rr).Token

	rr = do(t, srv, http.MethodGet, "/api/users/me", "", "")
	if rr.Code != http.StatusUnauthorized || errorMessage(t, rr) != "Authentication required" {
		t.Fatalf("anonymous me status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodGet, "/api/users/me", "not-a-token", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/users/me", token, "")
	me := decode[userDTO](t, rr)
	if rr.Code != http.StatusOK || me.Name != "Ann" || me.CreatedAt == nil {
		t.Fatalf("me status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPut, "/api/users/me", token, `{"budget":250.5,"name":"Annie"}`)
	upd := decode[userDTO](t, rr)
	if rr.Code != http.StatusOK || upd.Budget != 250.5 || upd.Name != "Annie" {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPut, "/api/users/me", token, `{"budget":-1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("negative budget status=%d", rr.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing name", `{"email":"a@example.com","password":"pw"}`, "Name is required"},
		{"missing password", `{"name":"A","email":"a@example.com"}`, "Password is required"},
		{"malformed json", `{"name":`, "Invalid request body"},
		{"array body", `[1,2]`, "Invalid request body"},
		{"budget out of range", `{"name":"A","email":"a@example.com","password":"pw","budget":1e20}`, "Amount out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/users/register", "", tt.body)
			if rr.Code != http.StatusBadRequest || errorMessage(t, rr) != tt.want {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestExpenseAmountOutOfRange(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := register(t, srv, "range@example.com")
	e := createExpense(t, srv, token, `{"item":"A","amount":10,"category":"Food"}`)

	rr := do(t, srv, http.MethodPost, "/api/expenses", token, `{"item":"B","amount":1e20,"category":"Food"}`)
	if rr.Code != http.StatusBadRequest || errorMessage(t, rr) != "Amount out of range" {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodPut, "/api/expenses/"+e.ID, token, `{"amount":"-100000000000000000000"}`)
	if rr.Code != http.StatusBadRequest || errorMessage(t, rr) != "Amount out of range" {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestExpenseCRUD(t *testing.T) {
	srv := newTestServer(t, Options{})
	owner := register(t, srv, "owner@example.com")
	other := register(t, srv, "other@example.com")

	e := createExpense(t, srv, owner, `{"item":"Coffee","amount":"12.345"}`)
	if e.Amount != 12.35 || e.Category != core.DefaultCategory || e.LegacyID != e.ID || e.ID == "" {
		t.Fatalf("created = %+v", e)
	}

	rr := do(t, srv, http.MethodPost, "/api/expenses", owner, `{"item":"Tea","amount":1,"date":"yesterday"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad date status=%d", rr.Code)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
		msg    string
	}{
		{"update foreign", http.MethodPut, "/api/expenses/" + e.ID, other, `{"item":"x"}`, http.StatusForbidden, "Not authorized to modify this expense"},
		{"update missing", http.MethodPut, "/api/expenses/missing", owner, `{"item":"x"}`, http.StatusNotFound, "Expense not found"},
		{"delete foreign", http.MethodDelete, "/api/expenses/" + e.ID, other, "", http.StatusForbidden, "Not authorized to delete this expense"},
		{"delete missing", http.MethodDelete, "/api/expenses/missing", owner, "", http.StatusNotFound, "Expense not found"},
		{"anonymous", http.MethodDelete, "/api/expenses/" + e.ID, "", "", http.StatusUnauthorized, "Authentication required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.token, tt.body)
			if rr.Code != tt.status || errorMessage(t, rr) != tt.msg {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
		})
	}

	rr = do(t, srv, http.MethodPut, "/api/expenses/"+e.ID, owner, `{"amount":"7,5","category":"Food","date":"2024-03-01"}`)
	upd := decode[expenseDTO](t, rr)
	if rr.Code != http.StatusOK || upd.Amount != 7.5 || upd.Category != "Food" || upd.Item != "Coffee" {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !upd.Date.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v", upd.Date)
	}

	rr = do(t, srv, http.MethodDelete, "/api/expenses/"+e.ID, owner, "")
	if rr.Code != http.StatusOK || !decode[successDTO](t, rr).Success {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestListExpenses(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := register(t, srv, "list@example.com")
	createExpense(t, srv, token, `{"item":"A","amount":300,"category":"Food","date":"2024-01-10"}`)
	createExpense(t, srv, token, `{"item":"B","amount":450,"category":"Transport","date":"2024-01-20"}`)
	createExpense(t, srv, token, `{"item":"C","amount":500,"category":"Food","date":"2024-02-05"}`)

	rr := do(t, srv, http.MethodGet, "/api/expenses?page=1&limit=2", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	res := decode[listDTO](t, rr)
	if res.TotalItems != 3 || res.TotalPages != 2 || res.CurrentPage != 1 || len(res.Expenses) != 2 {
		t.Fatalf("list = %+v", res)
	}
	if res.Expenses[0].Item != "C" || res.Expenses[1].Item != "B" {
		t.Fatalf("order = %s, %s", res.Expenses[0].Item, res.Expenses[1].Item)
	}
	if res.TotalExpense != 950 || res.Budget.Remaining != 50 || res.Budget.State != core.UnderBudget {
		t.Fatalf("totals = %v %+v", res.TotalExpense, res.Budget)
	}
	if len(res.CategoryDistribution) != 2 || res.CategoryDistribution[0].Category != "Food" || res.CategoryDistribution[0].Total != 800 {
		t.Fatalf("distribution = %+v", res.CategoryDistribution)
	}
	if !strings.Contains(rr.Body.String(), `"_id":"Food"`) {
		t.Fatalf("distribution must use _id keys: %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses?page=x&limit=y&startDate=2024-01-01&endDate=2024-01-20&category=all", token, "")
	res = decode[listDTO](t, rr)
	if res.TotalItems != 2 || res.CurrentPage != 1 || res.TotalPages != 1 {
		t.Fatalf("range list = %+v", res)
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses?startDate=2024-01-01&category=Food", token, "")
	if res = decode[listDTO](t, rr); res.TotalItems != 2 {
		t.Fatalf("single bound must not filter dates, got %d items", res.TotalItems)
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses?page=9223372036854775807&limit=10", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unreachable page status=%d body=%s", rr.Code, rr.Body.String())
	}
	if res = decode[listDTO](t, rr); len(res.Expenses) != 0 || res.TotalItems != 3 {
		t.Fatalf("unreachable page = %+v", res)
	}
}

func TestExportFormats(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := register(t, srv, "export@example.com")
	createExpense(t, srv, token, `{"item":"A","amount":10,"date":"2024-01-10"}`)
	createExpense(t, srv, token, `{"item":"B","amount":5.5,"date":"2024-01-11"}`)

	rr := do(t, srv, http.MethodGet, "/api/expenses/export", token, "")
	rows := decode[[]expenseDTO](t, rr)
	if rr.Code != http.StatusOK || len(rows) != 2 || rows[0].Item != "B" {
		t.Fatalf("json export status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses/export?format=csv", token, "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("csv export status=%d type=%s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "Expense_Report.csv") {
		t.Fatalf("disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(rr.Body.String(), "Total,,,15.50") {
		t.Fatalf("csv body = %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses/export?format=xlsx", token, "")
	if rr.Code != http.StatusOK || rr.Body.Len() == 0 || !strings.Contains(rr.Header().Get("Content-Disposition"), "Expense_Report.xlsx") {
		t.Fatalf("xlsx export status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses/export?format=pdf", token, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown format status=%d", rr.Code)
	}
}

func TestStatsAndCharts(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := register(t, srv, "stats@example.com")

	rr := do(t, srv, http.MethodGet, "/api/expenses/stats/chart.png", token, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("empty chart status=%d", rr.Code)
	}

	createExpense(t, srv, token, `{"item":"A","amount":20,"category":"Food"}`)
	createExpense(t, srv, token, `{"item":"B","amount":30,"category":"Bills"}`)

	rr = do(t, srv, http.MethodGet, "/api/expenses/stats", token, "")
	st := decode[statsDTO](t, rr)
	now := time.Now()
	if rr.Code != http.StatusOK || len(st.MonthlyTrend) != 1 {
		t.Fatalf("stats status=%d body=%s", rr.Code, rr.Body.String())
	}
	point := st.MonthlyTrend[0]
	if point.Total != 50 || point.MonthNumber != int(now.UTC().Month()) || point.Month != now.UTC().Month().String()[:3] {
		t.Fatalf("trend point = %+v", point)
	}
	if len(st.CategoryDistribution) != 2 || st.CategoryDistribution[0].Category != "Bills" {
		t.Fatalf("distribution = %+v", st.CategoryDistribution)
	}

	for _, path := range []string{"/api/expenses/stats/chart.png", "/api/expenses/stats/categories.png"} {
		rr = do(t, srv, http.MethodGet, path, token, "")
		if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
			t.Fatalf("%s status=%d type=%s", path, rr.Code, rr.Header().Get("Content-Type"))
		}
	}

	rr = do(t, srv, http.MethodGet, "/api/categories", token, "")
	if cats := decode[[]string](t, rr); len(cats) != len(core.SuggestedCategories) {
		t.Fatalf("categories = %v", cats)
	}
}

func TestRoutingErrorsAreJSON(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/api/nope", "", "")
	if rr.Code != http.StatusNotFound || errorMessage(t, rr) != "Not found" {
		t.Fatalf("404 status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodPatch, "/api/users/login", "", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("405 status=%d", rr.Code)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	srv := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("CORS origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 2})
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = do(t, srv, http.MethodPost, "/api/users/login", "", `{"email":"x@example.com","password":"pw"}`)
	}
	if last.Code != http.StatusTooManyRequests || last.Header().Get("Retry-After") != "60" {
		t.Fatalf("third request status=%d", last.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("health checks must bypass the limiter, status=%d", rr.Code)
	}
}

type failingReports struct{ ExpenseReader }

func (failingReports) List(context.Context, string, services.ListQuery) (services.ListResult, error) {
	return services.ListResult{}, fmt.Errorf("list expenses: %w: %w", core.ErrStoreUnavailable, errors.New("dial tcp 10.0.0.5:5432: connection refused"))
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	issuer := auth.NewIssuer("test-secret-0123456789", time.Hour)
	srv := NewServer(":0", Deps{Reports: failingReports{}, Tokens: issuer, Logger: quietLogger()}, Options{RateLimitPerMinute: 100})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	token, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatal(err)
	}
	rr := do(t, srv, http.MethodGet, "/api/expenses", token, "")
	if rr.Code != http.StatusInternalServerError || errorMessage(t, rr) != "Internal server error" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := srv.Metrics(); got.ServerErrors != 1 {
		t.Fatalf("ServerErrors = %d", got.ServerErrors)
	}
}
