package sonar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, "squ_testtoken", WithRetry(3, time.Millisecond))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c, srv
}

func searchPayload(total int) string {
	return fmt.Sprintf(`{"paging":{"pageIndex":1,"pageSize":100,"total":%d}}`, total)
}

func TestNew_RequiresHost(t *testing.T) {
	if _, err := New("", "tok"); err == nil {
		t.Fatalf("expected error for empty host, got nil")
	}
}

func TestExists_SendsBearerToken(t *testing.T) {
	var gotAuth atomic.Value
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		fmt.Fprint(w, searchPayload(0))
	}))

	if _, err := c.Exists(context.Background(), "platform_billing"); err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if got := gotAuth.Load(); got != "Bearer squ_testtoken" {
		t.Fatalf("Authorization header = %v, want Bearer squ_testtoken", got)
	}
}

func TestExists_TrueAndFalse(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.URL.Query().Get("projects") {
		case "platform_billing":
			fmt.Fprint(w, searchPayload(1))
		default:
			fmt.Fprint(w, searchPayload(0))
		}
	}))

	exists, err := c.Exists(context.Background(), "platform_billing")
	if err != nil || !exists {
		t.Fatalf("Exists(platform_billing) = %v, %v; want true, nil", exists, err)
	}
	exists, err = c.Exists(context.Background(), "data_etl")
	if err != nil || exists {
		t.Fatalf("Exists(data_etl) = %v, %v; want false, nil", exists, err)
	}
}

func TestExists_MemoizesPositiveLookups(t *testing.T) {
	var hits atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, searchPayload(1))
	}))

	for i := 0; i < 5; i++ {
		if _, err := c.Exists(context.Background(), "platform_billing"); err != nil {
			t.Fatalf("Exists returned error: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("server hit %d times, want 1", hits.Load())
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, searchPayload(1))
	}))

	exists, err := c.Exists(context.Background(), "platform_billing")
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true, nil", exists, err)
	}
	if hits.Load() != 3 {
		t.Fatalf("server hit %d times, want 3", hits.Load())
	}
}

func TestDo_ExhaustedRetriesIsUnreachable(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Exists(context.Background(), "platform_billing")
	if !errors.Is(err, ErrServerUnreachable) {
		t.Fatalf("expected ErrServerUnreachable, got %v", err)
	}
}

func TestDo_AuthRejectionDoesNotRetry(t *testing.T) {
	var hits atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.Exists(context.Background(), "platform_billing")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("server hit %d times, want 1", hits.Load())
	}
}

func TestDo_NetworkFailureIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, "tok", WithRetry(2, time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Exists(context.Background(), "platform_billing")
	if !errors.Is(err, ErrServerUnreachable) {
		t.Fatalf("expected ErrServerUnreachable, got %v", err)
	}
}

func TestEnsureProject_CreatesMissingProject(t *testing.T) {
	var created atomic.Bool
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/projects/search":
			fmt.Fprint(w, searchPayload(0))
		case "/api/projects/create":
			if err := r.ParseForm(); err != nil {
				t.Errorf("bad create form: %v", err)
			}
			if r.PostForm.Get("project") != "platform_billing" || r.PostForm.Get("name") != "platform-billing" {
				t.Errorf("unexpected form: %v", r.PostForm)
			}
			created.Store(true)
			fmt.Fprint(w, `{"project":{"key":"platform_billing"}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	res, err := c.EnsureProject(context.Background(), "platform_billing", "platform-billing")
	if err != nil {
		t.Fatalf("EnsureProject returned error: %v", err)
	}
	if res != ProjectCreated || !created.Load() {
		t.Fatalf("result = %v, created = %v; want ProjectCreated, true", res, created.Load())
	}
}

func TestEnsureProject_SkipsCreateWhenPresent(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/projects/create" {
			t.Errorf("create called for existing project")
		}
		fmt.Fprint(w, searchPayload(1))
	}))

	res, err := c.EnsureProject(context.Background(), "platform_billing", "platform-billing")
	if err != nil {
		t.Fatalf("EnsureProject returned error: %v", err)
	}
	if res != ProjectAlreadyExists {
		t.Fatalf("result = %v, want ProjectAlreadyExists", res)
	}
}

func TestEnsureProject_RacingCreateIsAlreadyExists(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/projects/search":
			fmt.Fprint(w, searchPayload(0))
		case "/api/projects/create":
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"errors":[{"msg":"Could not create Project, key already exists: platform_billing"}]}`)
		}
	}))

	res, err := c.EnsureProject(context.Background(), "platform_billing", "platform-billing")
	if err != nil {
		t.Fatalf("EnsureProject returned error: %v", err)
	}
	if res != ProjectAlreadyExists {
		t.Fatalf("result = %v, want ProjectAlreadyExists", res)
	}
}

func TestValidateAuth(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "valid",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"valid":true}`)
			},
			wantErr: nil,
		},
		{
			name: "invalid_token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"valid":false}`)
			},
			wantErr: ErrAuth,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantErr: ErrAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.handler)
			err := c.ValidateAuth(context.Background())
			if tt.wantErr == nil && err != nil {
				t.Fatalf("ValidateAuth returned error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateAuth = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
