package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilderDefaults(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(rec)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestJSONResponseBuilderStatusAndHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Request-Id", "abc123").
		Body(errorPayload{Error: ""}).
		Write(rec)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "abc123" {
		t.Errorf("X-Request-Id = %q", got)
	}
}

func TestJSONResponseBuilderNilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rec)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *JSONResponseBuilder
		want    int
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest},
		{"unprocessable", UnprocessableEntityError("invalid"), http.StatusUnprocessableEntity},
		{"not found", NotFoundError("missing"), http.StatusNotFound},
		{"internal", InternalServerError("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.builder.Write(rec)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			var payload errorPayload
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload.Error == "" {
				t.Error("error message missing")
			}
		})
	}
}

func TestMethodNotAllowedErrorSetsAllowHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(rec)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET, POST" {
		t.Errorf("Allow = %q", got)
	}
}

func TestParseMonthParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    MonthParams
		wantErr bool
	}{
		{"explicit", "year=2024&month=3", MonthParams{Year: 2024, Month: 3}, false},
		{"month too high", "year=2024&month=13", MonthParams{}, true},
		{"month zero", "year=2024&month=0", MonthParams{}, true},
		{"garbage year", "year=abc&month=3", MonthParams{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/balances/weekly?"+tt.query, nil)
			got, err := ParseMonthParams(req.URL.Query())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("params = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/transactions?search=rent&type=withdrawal&min_amount=10&max_amount=500&start=2024-01-01&end=2024-01-31", nil)
	f, err := parseFilter(req.URL.Query())
	if err != nil {
		t.Fatalf("parseFilter: %v", err)
	}
	if f.Search != "rent" || string(f.Type) != "withdrawal" {
		t.Errorf("filter = %+v", f)
	}
	if f.MinAmount != 10 || f.MaxAmount != 500 {
		t.Errorf("amounts = %v..%v", f.MinAmount, f.MaxAmount)
	}
	if f.StartDate.String() != "2024-01-01" || f.EndDate.String() != "2024-01-31" {
		t.Errorf("dates = %s..%s", f.StartDate, f.EndDate)
	}

	bad := []string{
		"type=transfer",
		"min_amount=abc",
		"max_amount=abc",
		"start=2024/01/01",
		"end=tomorrow",
	}
	for _, q := range bad {
		req := httptest.NewRequest(http.MethodGet, "/transactions?"+q, nil)
		if _, err := parseFilter(req.URL.Query()); err == nil {
			t.Errorf("parseFilter(%q): expected error", q)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  groceries  ", "groceries"},
		{"line\nbreak", "line\nbreak"},
		{"null\x00byte", "nullbyte"},
		{"bell\x07char", "bellchar"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
