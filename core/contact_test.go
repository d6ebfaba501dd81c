package core

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const sampleSubmission = `{"name":"A","email":"a@x.com","mobile":"123","message":"hi"}`

type upstreamCall struct {
	Method      string
	ContentType string
	Body        []byte
}

type fakeUpstream struct {
	mu     sync.Mutex
	calls  []upstreamCall
	status int
	body   string
}

func newFakeUpstream(t *testing.T, status int, body string) (*fakeUpstream, *httptest.Server) {
	t.Helper()
	up := &fakeUpstream{status: status, body: body}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		up.mu.Lock()
		up.calls = append(up.calls, upstreamCall{
			Method:      r.Method,
			ContentType: r.Header.Get("Content-Type"),
			Body:        data,
		})
		up.mu.Unlock()
		w.WriteHeader(up.status)
		io.WriteString(w, up.body)
	}))
	t.Cleanup(srv.Close)
	return up, srv
}

func (f *fakeUpstream) Calls() []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstreamCall(nil), f.calls...)
}

type countingTransport struct {
	mu    sync.Mutex
	count int
	err   error
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return nil, c.err
}

func newTestRelay(url string) (*ContactRelay, *observer.ObservedLogs) {
	obs, logs := observer.New(zap.DebugLevel)
	return NewContactRelay(ContactConfig{UpstreamURL: url}, zap.New(obs)), logs
}

func postContact(relay http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, rec.Body.String())
	}
	return out
}

func TestContactRelay_RejectsNonPostMethods(t *testing.T) {
	transport := &countingTransport{}
	relay, _ := newTestRelay("http://upstream.invalid/exec")
	relay.Client = &http.Client{Transport: transport}

	methods := []string{
		http.MethodGet, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodHead, http.MethodOptions,
	}
	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/api/contact", strings.NewReader(sampleSubmission))
			rec := httptest.NewRecorder()
			relay.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Fatalf("expected 405, got %d", rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"Method not allowed"}` {
				t.Errorf("unexpected body: %s", got)
			}
			if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
				t.Errorf("expected Allow: POST, got %q", allow)
			}
		})
	}

	if transport.count != 0 {
		t.Errorf("expected no outbound calls, got %d", transport.count)
	}
}

func TestContactRelay_RelaysUpstreamSuccess(t *testing.T) {
	up, srv := newFakeUpstream(t, http.StatusOK, `{"ok":true}`)
	relay, _ := newTestRelay(srv.URL)

	rec := postContact(relay, sampleSubmission)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != `{"ok":true}` {
		t.Errorf("expected upstream body verbatim, got %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type: %s", ct)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	calls := up.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", len(calls))
	}
	if calls[0].Method != http.MethodPost {
		t.Errorf("expected POST upstream, got %s", calls[0].Method)
	}
	if calls[0].ContentType != "application/json" {
		t.Errorf("expected JSON content type upstream, got %s", calls[0].ContentType)
	}
	if got := string(calls[0].Body); got != sampleSubmission {
		t.Errorf("unexpected upstream body:\n got %s\nwant %s", got, sampleSubmission)
	}
}

func TestContactRelay_MasksNon200SuccessStatus(t *testing.T) {
	_, srv := newFakeUpstream(t, http.StatusCreated, `{"row":7}`)
	relay, _ := newTestRelay(srv.URL)

	rec := postContact(relay, sampleSubmission)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for any 2xx upstream, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"row":7}` {
		t.Errorf("unexpected body: %s", got)
	}
}

func TestContactRelay_UpstreamErrorStatusIsOpaque(t *testing.T) {
	up, srv := newFakeUpstream(t, http.StatusBadGateway, `{"detail":"quota exceeded"}`)
	relay, logs := newTestRelay(srv.URL)

	rec := postContact(relay, sampleSubmission)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.TrimSpace(body) != `{"error":"Failed to submit form"}` {
		t.Errorf("unexpected body: %s", body)
	}
	for _, leak := range []string{"502", "Bad Gateway", "quota"} {
		if strings.Contains(body, leak) {
			t.Errorf("response leaked upstream detail %q: %s", leak, body)
		}
	}
	if len(up.Calls()) != 1 {
		t.Errorf("expected one upstream call, got %d", len(up.Calls()))
	}

	errs := logs.FilterLevelExact(zap.ErrorLevel).All()
	if len(errs) != 1 {
		t.Fatalf("expected one error log, got %d", len(errs))
	}
	if !strings.Contains(errs[0].ContextMap()["error"].(string), "502") {
		t.Errorf("expected upstream status in the log, got %v", errs[0].ContextMap())
	}
}

func TestContactRelay_NetworkFaultIsOpaque(t *testing.T) {
	transport := &countingTransport{err: errors.New("connection refused")}
	relay, logs := newTestRelay("http://upstream.invalid/exec")
	relay.Client = &http.Client{Transport: transport}

	rec := postContact(relay, sampleSubmission)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"error":"Failed to submit form"}` {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if transport.count != 1 {
		t.Errorf("expected one outbound attempt and no retry, got %d", transport.count)
	}
	if n := logs.FilterLevelExact(zap.ErrorLevel).Len(); n != 1 {
		t.Errorf("expected one error log, got %d", n)
	}
}

func TestContactRelay_MalformedUpstreamJSONIsOpaque(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"html page", `<html>not json</html>`},
		{"trailing html", `{"ok":true} <html>oops</html>`},
		{"two values", `{"ok":true} {"ok":false}`},
		{"truncated", `{"ok":`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newFakeUpstream(t, http.StatusOK, tt.body)
			relay, logs := newTestRelay(srv.URL)

			rec := postContact(relay, sampleSubmission)

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
			}
			if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"Failed to submit form"}` {
				t.Errorf("unexpected body: %s", got)
			}
			if n := logs.FilterLevelExact(zap.ErrorLevel).Len(); n != 1 {
				t.Errorf("expected one error log, got %d", n)
			}
		})
	}
}

func TestContactRelay_UpstreamWhitespaceTolerated(t *testing.T) {
	_, srv := newFakeUpstream(t, http.StatusOK, "\n  {\"result\":\"success\"}\n")
	relay, _ := newTestRelay(srv.URL)

	rec := postContact(relay, sampleSubmission)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"result":"success"}` {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestContactRelay_ForwardsOnlyPresentFields(t *testing.T) {
	tests := []struct {
		name string
		in   string
		keys []string
	}{
		{"all fields", sampleSubmission, []string{"name", "email", "mobile", "message"}},
		{"name and message", `{"name":"A","message":"hi"}`, []string{"name", "message"}},
		{"empty object", `{}`, nil},
		{"empty body", ``, nil},
		{"null counts as absent", `{"name":"A","mobile":null}`, []string{"name"}},
		{"unknown keys dropped", `{"email":"a@x.com","company":"Acme"}`, []string{"email"}},
		{"empty string kept", `{"mobile":""}`, []string{"mobile"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, srv := newFakeUpstream(t, http.StatusOK, `{"ok":true}`)
			relay, _ := newTestRelay(srv.URL)

			rec := postContact(relay, tt.in)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}

			calls := up.Calls()
			if len(calls) != 1 {
				t.Fatalf("expected one upstream call, got %d", len(calls))
			}

			var sent map[string]interface{}
			if err := json.Unmarshal(calls[0].Body, &sent); err != nil {
				t.Fatalf("upstream body is not valid JSON: %v", err)
			}
			if len(sent) != len(tt.keys) {
				t.Errorf("expected keys %v, got %v", tt.keys, sent)
			}
			for _, k := range tt.keys {
				if _, ok := sent[k]; !ok {
					t.Errorf("expected key %q in %v", k, sent)
				}
			}
		})
	}
}

func TestContactRelay_RejectsInvalidSubmissions(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		field string
	}{
		{"not json", `name=A`, ""},
		{"array body", `["A"]`, ""},
		{"numeric mobile", `{"mobile":12345}`, "mobile"},
		{"object message", `{"message":{"text":"hi"}}`, "message"},
		{"name too long", `{"name":"` + strings.Repeat("a", 201) + `"}`, "name"},
		{"message too long", `{"message":"` + strings.Repeat("m", 5001) + `"}`, "message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &countingTransport{}
			relay, _ := newTestRelay("http://upstream.invalid/exec")
			relay.Client = &http.Client{Transport: transport}

			rec := postContact(relay, tt.in)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}

			body := decodeBody(t, rec)
			if body["error"] != "Invalid submission" {
				t.Errorf("unexpected error: %v", body["error"])
			}
			if tt.field != "" {
				fields, _ := body["fields"].(map[string]interface{})
				if _, ok := fields[tt.field]; !ok {
					t.Errorf("expected field error for %q, got %v", tt.field, body["fields"])
				}
			}
			if transport.count != 0 {
				t.Errorf("expected no outbound call, got %d", transport.count)
			}
		})
	}
}

func TestContactRelay_LengthLimitCountsRunes(t *testing.T) {
	_, srv := newFakeUpstream(t, http.StatusOK, `{"ok":true}`)
	relay, _ := newTestRelay(srv.URL)

	rec := postContact(relay, `{"name":"`+strings.Repeat("é", 200)+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for 200 multi-byte runes, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestContactRelay_IsNotIdempotent(t *testing.T) {
	up, srv := newFakeUpstream(t, http.StatusOK, `{"ok":true}`)
	relay, _ := newTestRelay(srv.URL)

	first := postContact(relay, sampleSubmission)
	second := postContact(relay, sampleSubmission)

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected both submissions to succeed, got %d and %d", first.Code, second.Code)
	}
	if n := len(up.Calls()); n != 2 {
		t.Errorf("expected two independent upstream calls, got %d", n)
	}
	if first.Header().Get("X-Request-ID") == second.Header().Get("X-Request-ID") {
		t.Error("expected distinct request ids")
	}
}

func TestNewContactRelay_NilLoggerAndTimeout(t *testing.T) {
	relay := NewContactRelay(ContactConfig{UpstreamURL: "http://example.com", Timeout: 3 * time.Second}, nil)

	if relay.Logger == nil {
		t.Error("expected a no-op logger")
	}
	if relay.Client.Timeout != 3*time.Second {
		t.Errorf("expected 3s client timeout, got %s", relay.Client.Timeout)
	}
}
