package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/dutyroster/internal/duty"
)

type tokenSourceStub struct {
	mu          sync.Mutex
	token       string
	present     bool
	invalidated int
}

func (s *tokenSourceStub) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.present
}

func (s *tokenSourceStub) Invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated++
	s.present = false
}

func newTestClient(t *testing.T, handler http.Handler, tokens TokenSource) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, server.Client(), tokens, 5*time.Second, nil), server
}

func TestClient_Login(t *testing.T) {
	t.Parallel()

	t.Run("returns the token, expiry window and user", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var params LoginParams
			if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
				t.Errorf("failed to decode login body: %v", err)
			}
			if params.Username != "alice" || params.Password != "secret" {
				t.Errorf("unexpected credentials: %+v", params)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "token-abc",
				"token_type":   "bearer",
				"expires_in":   3600,
				"user":         map[string]any{"username": "alice", "is_active": true, "role": "user"},
			})
		}), nil)

		result, err := client.Login(context.Background(), LoginParams{Username: "alice", Password: "secret"})
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if result.AccessToken != "token-abc" || result.ExpiresIn != 3600 {
			t.Fatalf("unexpected login result: %+v", result)
		}
		if result.User.Username != "alice" {
			t.Fatalf("expected user alice, got %+v", result.User)
		}
	})

	t.Run("maps rejected credentials to unauthorized", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"invalid credentials"}`, http.StatusUnauthorized)
		}), nil)

		_, err := client.Login(context.Background(), LoginParams{Username: "alice", Password: "wrong"})
		if !errors.Is(err, duty.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("maps an unreachable remote to unauthorized", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()
		client := New(server.URL, nil, nil, time.Second, nil)

		_, err := client.Login(context.Background(), LoginParams{Username: "alice", Password: "secret"})
		if !errors.Is(err, duty.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestClient_AuthenticatedCalls(t *testing.T) {
	t.Parallel()

	t.Run("refuses to dial without an active session", func(t *testing.T) {
		t.Parallel()

		requests := 0
		tokens := &tokenSourceStub{}
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
		}), tokens)

		_, err := client.GetAll(context.Background())
		if !errors.Is(err, duty.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if requests != 0 {
			t.Fatalf("expected no network call, saw %d requests", requests)
		}
	})

	t.Run("attaches the bearer token", func(t *testing.T) {
		t.Parallel()

		tokens := &tokenSourceStub{token: "token-abc", present: true}
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer token-abc" {
				t.Errorf("expected bearer header, got %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{}})
		}), tokens)

		if _, err := client.GetAll(context.Background()); err != nil {
			t.Fatalf("GetAll failed: %v", err)
		}
	})

	t.Run("invalidates the session on a 401", func(t *testing.T) {
		t.Parallel()

		tokens := &tokenSourceStub{token: "stale", present: true}
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}), tokens)

		_, err := client.GetAll(context.Background())
		if !errors.Is(err, duty.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if tokens.invalidated != 1 {
			t.Fatalf("expected one invalidation, got %d", tokens.invalidated)
		}
	})

	t.Run("maps backend rejections to RemoteError", func(t *testing.T) {
		t.Parallel()

		tokens := &tokenSourceStub{token: "token", present: true}
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"message": "database on fire"})
		}), tokens)

		_, err := client.Get(context.Background(), "2025-07-14")
		var rErr *duty.RemoteError
		if !errors.As(err, &rErr) {
			t.Fatalf("expected RemoteError, got %v", err)
		}
		if rErr.Status != http.StatusInternalServerError || rErr.Message != "database on fire" {
			t.Fatalf("unexpected RemoteError: %+v", rErr)
		}
		if tokens.invalidated != 0 {
			t.Fatal("a 500 must not tear the session down")
		}
	})

	t.Run("maps a missing assignment to ErrNotFound", func(t *testing.T) {
		t.Parallel()

		tokens := &tokenSourceStub{token: "token", present: true}
		client, _ := newTestClient(t, http.NotFoundHandler(), tokens)

		_, err := client.Get(context.Background(), "2025-07-14")
		if !errors.Is(err, duty.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("maps transport failures to ErrUnavailable", func(t *testing.T) {
		t.Parallel()

		tokens := &tokenSourceStub{token: "token", present: true}
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()
		client := New(server.URL, nil, tokens, time.Second, nil)

		_, err := client.GetAll(context.Background())
		if !errors.Is(err, duty.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})
}

func TestClient_ScheduleCRUD(t *testing.T) {
	t.Parallel()

	t.Run("create round-trips the assignment", func(t *testing.T) {
		t.Parallel()

		tokens := &tokenSourceStub{token: "token", present: true}
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/schedule" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var assignment duty.Assignment
			if err := json.NewDecoder(r.Body).Decode(&assignment); err != nil {
				t.Errorf("failed to decode body: %v", err)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "created", "data": assignment})
		}), tokens)

		want := duty.Assignment{EmployeeName: "Jan Kowalski", Phone: "123456789", Date: "2025-07-14"}
		got, err := client.Create(context.Background(), want)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if got != want {
			t.Fatalf("Create returned %+v, want %+v", got, want)
		}
	})

	t.Run("update sends only the employee fields", func(t *testing.T) {
		t.Parallel()

		tokens := &tokenSourceStub{token: "token", present: true}
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut || r.URL.Path != "/api/schedule/2025-07-14" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("failed to decode body: %v", err)
			}
			if body["name"] != "Anna" || body["phone"] != "987654321" {
				t.Errorf("unexpected update body: %v", body)
			}
			if _, ok := body["date"]; ok {
				t.Error("update body must not carry a date")
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": duty.Assignment{
				EmployeeName: "Anna", Phone: "987654321", Date: "2025-07-14",
			}})
		}), tokens)

		got, err := client.Update(context.Background(), "2025-07-14", duty.AssignmentInput{EmployeeName: "Anna", Phone: "987654321"})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.EmployeeName != "Anna" || got.Date != "2025-07-14" {
			t.Fatalf("unexpected update result: %+v", got)
		}
	})

	t.Run("delete targets the date path", func(t *testing.T) {
		t.Parallel()

		tokens := &tokenSourceStub{token: "token", present: true}
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || r.URL.Path != "/api/schedule/2025-07-14" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]string{"date": "2025-07-14"}})
		}), tokens)

		if err := client.Delete(context.Background(), "2025-07-14"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	})

	t.Run("get all decodes both enveloped and bare payloads", func(t *testing.T) {
		t.Parallel()

		schedule := duty.Schedule{
			"2025-07-14": {EmployeeName: "Jan", Phone: "123456789", Date: "2025-07-14"},
			"2025-07-15": {EmployeeName: "Anna", Phone: "987654321", Date: "2025-07-15"},
		}
		for name, body := range map[string]any{
			"enveloped": map[string]any{"success": true, "data": schedule},
			"bare":      schedule,
		} {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				tokens := &tokenSourceStub{token: "token", present: true}
				client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					_ = json.NewEncoder(w).Encode(body)
				}), tokens)

				got, err := client.GetAll(context.Background())
				if err != nil {
					t.Fatalf("GetAll failed: %v", err)
				}
				if len(got) != 2 || got["2025-07-14"].EmployeeName != "Jan" {
					t.Fatalf("unexpected schedule: %+v", got)
				}
			})
		}
	})
}

func TestClient_PublicEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("health needs no session", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				t.Error("health must not send credentials")
			}
			_ = json.NewEncoder(w).Encode(HealthStatus{Status: "healthy", Service: "duty-scheduler"})
		}), &tokenSourceStub{})

		status, err := client.Health(context.Background())
		if err != nil {
			t.Fatalf("Health failed: %v", err)
		}
		if status.Status != "healthy" {
			t.Fatalf("unexpected health payload: %+v", status)
		}
	})

	t.Run("registration status decodes", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]bool{
				"public_registration_enabled": true,
				"admin_only_registration":     false,
			})
		}), nil)

		status, err := client.RegistrationStatus(context.Background())
		if err != nil {
			t.Fatalf("RegistrationStatus failed: %v", err)
		}
		if !status.PublicRegistrationEnabled {
			t.Fatalf("unexpected registration status: %+v", status)
		}
	})
}
