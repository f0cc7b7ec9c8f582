package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func csrfHandler(t *testing.T, captured *string) http.Handler {
	t.Helper()
	return NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = CSRFTokenFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFMiddleware_GET_SetsCookieAndContextToken(t *testing.T) {
	var token string
	w := httptest.NewRecorder()
	csrfHandler(t, &token).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("csrf cookie should be set")
	}
	if len(cookie.Value) != 64 {
		t.Errorf("token length = %d, want 64", len(cookie.Value))
	}
	if token != cookie.Value {
		t.Errorf("context token = %q, want cookie value %q", token, cookie.Value)
	}
}

func TestCSRFMiddleware_GET_ReusesExistingCookie(t *testing.T) {
	var token string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()

	csrfHandler(t, &token).ServeHTTP(w, req)

	if len(w.Result().Cookies()) != 0 {
		t.Error("existing cookie should not be replaced")
	}
	if token != "existing-token" {
		t.Errorf("context token = %q, want %q", token, "existing-token")
	}
}

func TestCSRFMiddleware_POST_Validation(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		formToken  string
		wantStatus int
	}{
		{"header matches", "tok", "tok", "", http.StatusOK},
		{"form field matches", "tok", "", "tok", http.StatusOK},
		{"no cookie", "", "tok", "", http.StatusForbidden},
		{"nothing submitted", "tok", "", "", http.StatusForbidden},
		{"header mismatch", "tok", "other", "", http.StatusForbidden},
		{"form mismatch", "tok", "", "other", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			if tt.formToken != "" {
				form.Set(CSRFFormField, tt.formToken)
			}
			req := httptest.NewRequest(http.MethodPost, "/ui/logout", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()

			csrfHandler(t, nil).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestIsSafeMethod(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		if !isSafeMethod(m) {
			t.Errorf("isSafeMethod(%s) = false, want true", m)
		}
	}
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		if isSafeMethod(m) {
			t.Errorf("isSafeMethod(%s) = true, want false", m)
		}
	}
}
