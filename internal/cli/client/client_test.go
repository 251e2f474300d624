package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/argscan/argscan/internal/cli/notify"
)

type fakeSession struct {
	mu     sync.Mutex
	token  string
	clears int
}

func (s *fakeSession) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.clears++
	return nil
}

type fakeNavigator struct {
	login     bool
	redirects atomic.Int32
}

func (n *fakeNavigator) IsLoginView() bool { return n.login }
func (n *fakeNavigator) RedirectToLogin()  { n.redirects.Add(1) }

type harness struct {
	pipeline *Pipeline
	session  *fakeSession
	nav      *fakeNavigator
	notes    *notify.Recorder
}

func newHarness(t *testing.T, handler http.HandlerFunc) *harness {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	h := &harness{
		session: &fakeSession{token: "tok-123"},
		nav:     &fakeNavigator{},
		notes:   &notify.Recorder{},
	}
	h.pipeline = New(Options{
		BaseURL:   srv.URL + "/api",
		Session:   h.session,
		Navigator: h.nav,
		Notifier:  h.notes,
		Logger:    zerolog.Nop(),
	})
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestIsPublic(t *testing.T) {
	for _, p := range DefaultPublicPaths {
		require.True(t, IsPublic(p), p)
		require.True(t, IsPublic(p+"/"), p)
		require.True(t, IsPublic(p+"?lang=en"), p)
	}
	for _, p := range []string{"/auth/me", "/auth/logout", "/genome/upload", "/auth/login-history", "/admin/auth/login"} {
		require.False(t, IsPublic(p), p)
	}
	require.True(t, IsPublic("auth/login"))
}

func TestExecute_PublicPathsNeverCarryCredential(t *testing.T) {
	var seen []string
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": nil})
	})

	for _, p := range DefaultPublicPaths {
		_, err := h.pipeline.Execute(context.Background(), Request{Method: http.MethodPost, Path: p, Body: map[string]string{"email": "a@b.c"}})
		require.NoError(t, err)
	}

	require.Len(t, seen, len(DefaultPublicPaths))
	for _, auth := range seen {
		require.Empty(t, auth)
	}
}

func TestExecute_AttachesCredentialIffPresent(t *testing.T) {
	var auth string
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": map[string]string{"username": "ana"}})
	})

	_, err := h.pipeline.Execute(context.Background(), Request{Path: "/auth/me"})
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-123", auth)

	h.session.token = ""
	_, err = h.pipeline.Execute(context.Background(), Request{Path: "/auth/me"})
	require.NoError(t, err)
	require.Empty(t, auth)
}

func TestExecute_CustomPublicPaths(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{"code": 0})
	}))
	defer srv.Close()

	p := New(Options{
		BaseURL:     srv.URL,
		Session:     &fakeSession{token: "t"},
		Notifier:    &notify.Recorder{},
		PublicPaths: []string{"/health"},
	})
	_, err := p.Execute(context.Background(), Request{Path: "/health"})
	require.NoError(t, err)
	require.Empty(t, auth)

	_, err = p.Execute(context.Background(), Request{Path: "/auth/login"})
	require.NoError(t, err)
	require.Equal(t, "Bearer t", auth)
}

func TestExecute_ResolvesEnvelopeData(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/analysis/list", r.URL.Path)
		require.Equal(t, "ecoli", r.URL.Query().Get("keyword"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "message": "success", "data": []int{1, 2, 3}})
	})

	data, err := h.pipeline.Execute(context.Background(), Request{
		Path:  "/analysis/list",
		Query: map[string][]string{"keyword": {"ecoli"}},
	})
	require.NoError(t, err)
	require.JSONEq(t, `[1,2,3]`, string(data))
	require.Zero(t, h.notes.Len())

	var ids []int
	require.NoError(t, h.pipeline.Do(context.Background(), Request{Path: "/analysis/list", Query: map[string][]string{"keyword": {"ecoli"}}}, &ids))
	require.Equal(t, []int{1, 2, 3}, ids)
}

func TestExecute_JSONBody(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.EqualValues(t, 42, body["fileId"])
		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": map[string]any{"taskId": 9}})
	})

	var out struct {
		TaskID int `json:"taskId"`
	}
	require.NoError(t, h.pipeline.Do(context.Background(), Request{Method: http.MethodPost, Path: "/analysis/create", Body: map[string]any{"fileId": 42}}, &out))
	require.Equal(t, 9, out.TaskID)
}

func TestExecute_MultipartBody(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		require.True(t, strings.HasPrefix(ct, "multipart/form-data; boundary="), ct)
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "fasta", r.FormValue("fileType"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		require.Equal(t, "genome.fa", hdr.Filename)
		require.Equal(t, ">seq1\nACGT\n", string(content))

		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": map[string]any{"fileId": 1}})
	})

	_, err := h.pipeline.Execute(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/genome/upload",
		Body: &Multipart{
			Fields: []Field{{Name: "fileType", Value: "fasta"}},
			Files:  []FilePart{{Field: "file", FileName: "genome.fa", Content: strings.NewReader(">seq1\nACGT\n")}},
		},
	})
	require.NoError(t, err)
}

func TestExecute_EnvelopeUnauthorizedOutsideLogin(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"code": 401, "message": "token expired"})
	})

	_, err := h.pipeline.Execute(context.Background(), Request{Path: "/genome/list"})

	require.ErrorIs(t, err, ErrSessionExpired)
	require.Empty(t, h.session.Credential())
	require.Equal(t, 1, h.session.clears)
	require.EqualValues(t, 1, h.nav.redirects.Load())
	require.Equal(t, []notify.Message{{Level: notify.LevelError, Text: msgSessionExpired}}, h.notes.Messages())
	require.True(t, Notified(err))
}

func TestExecute_EnvelopeUnauthorizedOnLoginView(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"code": 401, "message": "email not registered"})
	})
	h.nav.login = true

	_, err := h.pipeline.Execute(context.Background(), Request{Method: http.MethodPost, Path: "/auth/login"})

	require.ErrorIs(t, err, ErrApplication)
	var e *Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, 401, e.Code)
	require.Equal(t, "email not registered", e.Message)

	require.Equal(t, "tok-123", h.session.Credential())
	require.Zero(t, h.session.clears)
	require.Zero(t, h.nav.redirects.Load())
	require.Equal(t, 1, h.notes.Len())
}

func TestExecute_EnvelopeApplicationError(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/a" {
			writeJSON(w, http.StatusOK, map[string]any{"code": 500, "message": "upload failed: disk quota"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"code": 3})
	})

	_, err := h.pipeline.Execute(context.Background(), Request{Path: "/a"})
	var e *Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, KindApplication, e.Kind)
	require.Equal(t, 500, e.Code)
	require.Equal(t, "upload failed: disk quota", e.Message)

	_, err = h.pipeline.Execute(context.Background(), Request{Path: "/b"})
	require.True(t, errors.As(err, &e))
	require.Equal(t, msgRequestFailed, e.Message)

	require.Equal(t, 2, h.notes.Len())
	require.Equal(t, "tok-123", h.session.Credential())
}

func TestExecute_NonEnvelopeSuccess(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>proxy page</html>"))
	})

	_, err := h.pipeline.Execute(context.Background(), Request{Path: "/genome/list"})
	require.ErrorIs(t, err, ErrApplication)
	require.Equal(t, 1, h.notes.Len())
}

func TestExecute_StatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{"bad request with server message", 400, `{"message":"email format is invalid"}`, KindBadRequest, "email format is invalid"},
		{"bad request prefers msg", 400, `{"msg":"first","message":"second","error":"third"}`, KindBadRequest, "first"},
		{"bad request fallback", 400, `not json`, KindBadRequest, msgBadRequest},
		{"forbidden", 403, `{"error":"Admin access required"}`, KindForbidden, msgForbidden},
		{"not found", 404, ``, KindNotFound, msgNotFound},
		{"payload too large with message", 413, `{"error":"file exceeds 100MB"}`, KindPayloadTooLarge, "file exceeds 100MB"},
		{"payload too large fallback", 413, ``, KindPayloadTooLarge, msgTooLarge},
		{"server error", 500, `{"message":"NullPointerException"}`, KindServer, msgServerError},
		{"bad gateway", 502, ``, KindServer, msgServerError},
		{"other status with message", 409, `{"error":"username taken"}`, KindHTTP, "username taken"},
		{"other status fallback", 429, ``, KindHTTP, msgRequestFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := h.pipeline.Execute(context.Background(), Request{Path: "/genome/list"})

			var e *Error
			require.True(t, errors.As(err, &e))
			require.Equal(t, tt.kind, e.Kind)
			require.Equal(t, tt.status, e.Status)
			require.Equal(t, tt.message, e.Message)
			require.Equal(t, []notify.Message{{Level: notify.LevelError, Text: tt.message}}, h.notes.Messages())
			require.Equal(t, "tok-123", h.session.Credential())
		})
	}
}

func TestExecute_PayloadTooLargeNotifiesOnce(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	})

	_, err := h.pipeline.Execute(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/genome/upload",
		Body:   &Multipart{Files: []FilePart{{Field: "file", FileName: "big.fa", Content: strings.NewReader("ACGT")}}},
	})
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	require.Equal(t, 1, h.notes.Len())
}

func TestExecute_StatusUnauthorizedOutsideLogin(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
	})

	_, err := h.pipeline.Execute(context.Background(), Request{Path: "/analysis/list"})

	require.ErrorIs(t, err, ErrSessionExpired)
	var e *Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, 401, e.Status)
	require.Empty(t, h.session.Credential())
	require.EqualValues(t, 1, h.nav.redirects.Load())
	require.Equal(t, []notify.Message{{Level: notify.LevelError, Text: msgSessionExpired}}, h.notes.Messages())
}

func TestExecute_StatusUnauthorizedOnLoginView(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "wrong password"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	h.nav.login = true

	_, err := h.pipeline.Execute(context.Background(), Request{Method: http.MethodPost, Path: "/auth/login"})
	require.ErrorIs(t, err, ErrHTTP)
	require.Equal(t, "wrong password", err.Error())

	_, err = h.pipeline.Execute(context.Background(), Request{Path: "/auth/me"})
	require.ErrorIs(t, err, ErrHTTP)
	require.Equal(t, msgAuthFailed, err.Error())

	require.Equal(t, "tok-123", h.session.Credential())
	require.Zero(t, h.nav.redirects.Load())
	require.Equal(t, 2, h.notes.Len())
}

// On the login view both 401 signals surface the server's reason, but a
// transport 401 keeps its HTTP kind and status while an envelope 401 is an
// application error carrying the code.
func TestExecute_LoginViewUnauthorizedKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		kind   Kind
		code   int
		sent   error
	}{
		{
			name:   "transport",
			status: http.StatusUnauthorized,
			body:   map[string]any{"msg": "account locked"},
			kind:   KindHTTP,
			sent:   ErrHTTP,
		},
		{
			name:   "envelope",
			status: http.StatusOK,
			body:   map[string]any{"code": 401, "message": "account locked"},
			kind:   KindApplication,
			code:   401,
			sent:   ErrApplication,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			h.nav.login = true

			_, err := h.pipeline.Execute(context.Background(), Request{Method: http.MethodPost, Path: "/auth/login"})
			require.ErrorIs(t, err, tt.sent)
			require.NotErrorIs(t, err, ErrSessionExpired)

			var e *Error
			require.ErrorAs(t, err, &e)
			require.Equal(t, tt.kind, e.Kind)
			require.Equal(t, "account locked", e.Message)
			require.Equal(t, tt.code, e.Code)
			if tt.kind == KindHTTP {
				require.Equal(t, http.StatusUnauthorized, e.Status)
			}

			require.Equal(t, "tok-123", h.session.Credential())
			require.Zero(t, h.nav.redirects.Load())
			require.Equal(t, 1, h.notes.Len())
		})
	}
}

func TestExecute_ConcurrentExpiryIsIdempotent(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"code": 401, "message": "expired"})
	})

	const calls = 8
	var wg sync.WaitGroup
	errs := make([]error, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.pipeline.Execute(context.Background(), Request{Path: "/genome/list"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, ErrSessionExpired)
	}
	require.Empty(t, h.session.Credential())
	// one notification per failed call, never two
	require.Equal(t, calls, h.notes.Len())
	require.EqualValues(t, calls, h.nav.redirects.Load())
}

func TestExecute_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	notes := &notify.Recorder{}
	p := New(Options{BaseURL: url + "/api", Session: &fakeSession{token: "t"}, Notifier: notes, Logger: zerolog.Nop()})

	_, err := p.Execute(context.Background(), Request{Path: "/genome/list"})
	require.ErrorIs(t, err, ErrNetwork)
	require.Equal(t, []notify.Message{{Level: notify.LevelError, Text: msgNetworkError}}, notes.Messages())
}

func TestExecute_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	notes := &notify.Recorder{}
	p := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, Notifier: notes})

	_, err := p.Execute(context.Background(), Request{Path: "/slow"})
	require.ErrorIs(t, err, ErrNetwork)
	require.Equal(t, 1, notes.Len())
}

func TestExecute_ClientConfigError(t *testing.T) {
	tests := []struct {
		name string
		base string
		req  Request
	}{
		{"relative base URL", "/api", Request{Path: "/auth/me"}},
		{"unsupported scheme", "ftp://example.org", Request{Path: "/auth/me"}},
		{"unmarshalable body", "http://127.0.0.1:1", Request{Method: http.MethodPost, Path: "/x", Body: map[string]any{"ch": make(chan int)}}},
		{"invalid method", "http://127.0.0.1:1", Request{Method: "BAD METHOD", Path: "/x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := &notify.Recorder{}
			p := New(Options{BaseURL: tt.base, Notifier: notes})

			_, err := p.Execute(context.Background(), tt.req)
			require.ErrorIs(t, err, ErrClientConfig)
			require.Equal(t, []notify.Message{{Level: notify.LevelError, Text: msgClientConfig}}, notes.Messages())
		})
	}
}

func TestExecute_BlobResponse(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/visualization/export/1" {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write([]byte("RAWDATA"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"code": 404, "message": "task not found"})
	})

	data, err := h.pipeline.Execute(context.Background(), Request{Path: "/visualization/export/1", Response: ResponseBlob})
	require.NoError(t, err)
	require.Equal(t, "RAWDATA", string(data))

	_, err = h.pipeline.Execute(context.Background(), Request{Path: "/visualization/export/2", Response: ResponseBlob})
	require.ErrorIs(t, err, ErrApplication)
	require.Equal(t, 1, h.notes.Len())
}

func TestError_IsAndKindOf(t *testing.T) {
	err := error(&Error{Kind: KindServer, Status: 503, Message: msgServerError})
	wrapped := errors.Join(errors.New("context"), err)

	require.ErrorIs(t, wrapped, ErrServer)
	require.NotErrorIs(t, wrapped, ErrNetwork)
	require.Equal(t, KindServer, KindOf(wrapped))
	require.Zero(t, KindOf(errors.New("plain")))
	require.False(t, Notified(err))
}
