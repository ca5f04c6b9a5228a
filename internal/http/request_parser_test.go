package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"Food"}`, ""},
		{"empty", ``, "request body is empty"},
		{"malformed", `{"name":`, "malformed JSON body"},
		{"unknown field", `{"name":"x","extra":1}`, "malformed JSON body"},
		{"trailing object", `{"name":"x"}{"name":"y"}`, "single JSON object"},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := decodeJSON(httptest.NewRecorder(), r, &p)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if p.Name != "Food" {
					t.Errorf("Name = %q", p.Name)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	q := url.Values{
		"limit":     {" 25 "},
		"bad":       {"ten"},
		"minAmount": {"-500"},
		"category":  {"  Food\x00 "},
	}

	if n, err := queryInt(q, "limit"); err != nil || n != 25 {
		t.Errorf("queryInt(limit) = %d, %v", n, err)
	}
	if n, err := queryInt(q, "missing"); err != nil || n != 0 {
		t.Errorf("queryInt(missing) = %d, %v", n, err)
	}
	if _, err := queryInt(q, "bad"); err == nil {
		t.Error("queryInt(bad) should fail")
	}

	v, err := queryInt64Ptr(q, "minAmount")
	if err != nil || v == nil || *v != -500 {
		t.Errorf("queryInt64Ptr(minAmount) = %v, %v", v, err)
	}
	if v, err := queryInt64Ptr(q, "maxAmount"); err != nil || v != nil {
		t.Errorf("queryInt64Ptr(maxAmount) = %v, %v", v, err)
	}
	if _, err := queryInt64Ptr(q, "bad"); err == nil {
		t.Error("queryInt64Ptr(bad) should fail")
	}

	if got := queryString(q, "category"); got != "Food" {
		t.Errorf("queryString(category) = %q, want Food", got)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x07b", "ab"},
		{"line1\nline2", "line1\nline2"},
		{"tab\there", "tab\there"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
