package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/argscan/argscan/internal/cli/notify"
)

// DefaultTimeout bounds every call; large enough for genome uploads
const DefaultTimeout = 5 * time.Minute

// User-facing messages
const (
	msgRequestFailed   = "request failed"
	msgSessionExpired  = "session expired, please log in again"
	msgBadRequest      = "invalid request parameters"
	msgAuthFailed      = "authentication failed, please check your email"
	msgForbidden       = "no permission to access this resource"
	msgNotFound        = "the requested resource does not exist"
	msgTooLarge        = "file size exceeds the limit, please choose a smaller file"
	msgServerError     = "server error, please try again later"
	msgNetworkError    = "network error, please check your connection"
	msgClientConfig    = "request configuration error"
	msgUnexpectedReply = "unexpected response from server"
)

// Session is the credential source the pipeline reads and tears down
type Session interface {
	Credential() string
	Clear() error
}

// Navigator knows the current view and performs the forced redirect to login
type Navigator interface {
	IsLoginView() bool
	RedirectToLogin()
}

// Options configures a Pipeline
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	Session     Session
	Navigator   Navigator
	Notifier    notify.Notifier
	Logger      zerolog.Logger
	PublicPaths []string // defaults to DefaultPublicPaths
}

// Pipeline sends every API call: it decides on credential attachment before
// the call and classifies the outcome after it, performing session teardown,
// redirect and user notification centrally.
type Pipeline struct {
	baseURL    string
	httpClient *http.Client
	session    Session
	navigator  Navigator
	notifier   notify.Notifier
	public     PathSet
	log        zerolog.Logger
}

// New creates a pipeline
func New(opts Options) *Pipeline {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	public := defaultPublic
	if opts.PublicPaths != nil {
		public = NewPathSet(opts.PublicPaths...)
	}

	return &Pipeline{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		session:    opts.Session,
		navigator:  opts.Navigator,
		notifier:   opts.Notifier,
		public:     public,
		log:        opts.Logger,
	}
}

// SetHTTPClient sets a custom HTTP client
func (p *Pipeline) SetHTTPClient(httpClient *http.Client) {
	p.httpClient = httpClient
}

// BaseURL returns the API base URL calls are resolved against
func (p *Pipeline) BaseURL() string {
	return p.baseURL
}

// IsPublic reports whether path is on this pipeline's public allow-list
func (p *Pipeline) IsPublic(path string) bool {
	return p.public.Match(path)
}

// Execute performs the call and returns the envelope data (or the raw body
// for blob responses). Failures are *Error values the user has already been
// notified about.
func (p *Pipeline) Execute(ctx context.Context, req Request) (json.RawMessage, error) {
	requestID := ulid.Make().String()
	start := time.Now()

	httpReq, authorized, err := p.beforeSend(ctx, req, requestID)
	if err != nil {
		return nil, p.fail(req, requestID, &Error{Kind: KindClientConfig, Message: msgClientConfig, Err: err})
	}

	resp, err := p.httpClient.Do(httpReq)

	var body []byte
	if err == nil {
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	p.log.Debug().
		Str("request_id", requestID).
		Str("method", httpReq.Method).
		Str("path", req.Path).
		Bool("public", p.IsPublic(req.Path)).
		Bool("authorized", authorized).
		Int("status", status).
		Dur("duration", time.Since(start)).
		Msg("HTTP request")

	return p.afterReceive(req, requestID, resp, body, err)
}

// Do executes req and decodes the data into out (when out is non-nil)
func (p *Pipeline) Do(ctx context.Context, req Request, out any) error {
	data, err := p.Execute(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// beforeSend builds the transport request and attaches the credential iff the
// path is not public and a credential is present.
func (p *Pipeline) beforeSend(ctx context.Context, req Request, requestID string) (*http.Request, bool, error) {
	target, err := p.resolve(req)
	if err != nil {
		return nil, false, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var (
		body        io.Reader
		contentType string
	)
	switch b := req.Body.(type) {
	case nil:
	case *Multipart:
		if b != nil {
			body, contentType = streamMultipart(b)
		}
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, false, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		if c, ok := body.(io.Closer); ok {
			c.Close()
		}
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	// Multipart bodies carry their own boundary; nothing preset survives.
	httpReq.Header.Del("Content-Type")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	authorized := false
	if !p.IsPublic(req.Path) && p.session != nil {
		if token := p.session.Credential(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
			authorized = true
		}
	}

	return httpReq, authorized, nil
}

func (p *Pipeline) resolve(req Request) (string, error) {
	base, err := url.Parse(p.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", p.baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", fmt.Errorf("invalid base URL %q: scheme must be http or https", p.baseURL)
	}
	if base.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: missing host", p.baseURL)
	}

	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	target := p.baseURL + path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	if _, err := url.Parse(target); err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", req.Path, err)
	}
	return target, nil
}

// streamMultipart writes the form through a pipe so large files are never
// buffered in memory
func streamMultipart(m *Multipart) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			for _, f := range m.Fields {
				if err := mw.WriteField(f.Name, f.Value); err != nil {
					return err
				}
			}
			for _, f := range m.Files {
				part, err := mw.CreateFormFile(f.Field, f.FileName)
				if err != nil {
					return err
				}
				if _, err := io.Copy(part, f.Content); err != nil {
					return err
				}
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

// envelope is the service's {code, message, data} wrapper
type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// afterReceive classifies the outcome; the first matching rule wins
func (p *Pipeline) afterReceive(req Request, requestID string, resp *http.Response, body []byte, err error) (json.RawMessage, error) {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			p.log.Debug().Str("request_id", requestID).Msg("Request cancelled by caller")
		}
		return nil, p.fail(req, requestID, &Error{Kind: KindNetwork, Message: msgNetworkError, Err: err})
	}

	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return p.classifyEnvelope(req, requestID, resp, body)
	}

	serverMsg := extractMessage(body)

	switch {
	case status == http.StatusBadRequest:
		return nil, p.fail(req, requestID, &Error{Kind: KindBadRequest, Status: status, Message: orDefault(serverMsg, msgBadRequest)})
	case status == http.StatusUnauthorized:
		return nil, p.expired(req, requestID, status, 0, orDefault(serverMsg, msgAuthFailed))
	case status == http.StatusForbidden:
		return nil, p.fail(req, requestID, &Error{Kind: KindForbidden, Status: status, Message: msgForbidden})
	case status == http.StatusNotFound:
		return nil, p.fail(req, requestID, &Error{Kind: KindNotFound, Status: status, Message: msgNotFound})
	case status == http.StatusRequestEntityTooLarge:
		return nil, p.fail(req, requestID, &Error{Kind: KindPayloadTooLarge, Status: status, Message: orDefault(serverMsg, msgTooLarge)})
	case status >= 500:
		return nil, p.fail(req, requestID, &Error{Kind: KindServer, Status: status, Message: msgServerError})
	default:
		return nil, p.fail(req, requestID, &Error{Kind: KindHTTP, Status: status, Message: orDefault(serverMsg, msgRequestFailed)})
	}
}

func (p *Pipeline) classifyEnvelope(req Request, requestID string, resp *http.Response, body []byte) (json.RawMessage, error) {
	var env envelope
	parseErr := json.Unmarshal(body, &env)
	isEnvelope := parseErr == nil && env.Code != nil

	if req.Response == ResponseBlob && (!isEnvelope || !isJSON(resp)) {
		return json.RawMessage(body), nil
	}

	if !isEnvelope {
		return nil, p.fail(req, requestID, &Error{Kind: KindApplication, Status: resp.StatusCode, Message: msgUnexpectedReply, Err: parseErr})
	}

	switch code := *env.Code; code {
	case 0:
		return env.Data, nil
	case http.StatusUnauthorized:
		return nil, p.expired(req, requestID, 0, code, orDefault(env.Message, msgRequestFailed))
	default:
		return nil, p.fail(req, requestID, &Error{Kind: KindApplication, Code: code, Message: orDefault(env.Message, msgRequestFailed)})
	}
}

// expired handles a 401 signal from either the envelope (code) or the
// transport (status). On the login view the server's reason is shown as-is
// and the session is left alone.
func (p *Pipeline) expired(req Request, requestID string, status, code int, serverMsg string) error {
	if p.navigator != nil && p.navigator.IsLoginView() {
		if status != 0 {
			return p.fail(req, requestID, &Error{Kind: KindHTTP, Status: status, Message: serverMsg})
		}
		return p.fail(req, requestID, &Error{Kind: KindApplication, Code: code, Message: serverMsg})
	}

	if p.session != nil {
		if err := p.session.Clear(); err != nil {
			p.log.Warn().Err(err).Msg("Failed to clear expired session")
		}
	}
	if p.navigator != nil {
		p.navigator.RedirectToLogin()
	}

	return p.fail(req, requestID, &Error{Kind: KindSessionExpired, Status: status, Code: code, Message: msgSessionExpired})
}

// fail notifies the user exactly once and returns the error
func (p *Pipeline) fail(req Request, requestID string, e *Error) error {
	p.log.Debug().
		Str("request_id", requestID).
		Str("path", req.Path).
		Str("kind", e.Kind.String()).
		Int("status", e.Status).
		Int("code", e.Code).
		Err(e.Err).
		Msg("Request failed")

	if p.notifier != nil && !e.notified {
		p.notifier.Notify(notify.LevelError, e.Message)
	}
	e.notified = true
	return e
}

// extractMessage reads the server's reason from an error body: msg, then
// message, then error
func extractMessage(body []byte) string {
	var fields struct {
		Msg     any `json:"msg"`
		Message any `json:"message"`
		Error   any `json:"error"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, v := range []any{fields.Msg, fields.Message, fields.Error} {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func isJSON(resp *http.Response) bool {
	return strings.Contains(resp.Header.Get("Content-Type"), "json")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
