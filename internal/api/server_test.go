package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/veil-sh/veil/internal/config"
	"github.com/veil-sh/veil/internal/detect"
	"github.com/veil-sh/veil/internal/pii"
	"github.com/veil-sh/veil/internal/session"
)

func newTestServer(t *testing.T, cfg config.ServerConfig) *httptest.Server {
	t.Helper()
	engine := detect.New(detect.Config{})
	srv := NewServer(engine, cfg, 0)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestDetectEndpoint(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	resp := postJSON(t, ts.URL+"/v1/detect", detectRequest{
		Text: "SSN on file: 123-45-6789.",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out detectResponse
	decodeJSON(t, resp, &out)

	if out.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if out.Report == nil || len(out.Report.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %+v", out.Report)
	}
	ent := out.Report.Entities[0]
	if ent.Type != pii.TypeSSN {
		t.Errorf("Type = %s, want %s", ent.Type, pii.TypeSSN)
	}
	if ent.MaskedValue != "***-**-6789" {
		t.Errorf("MaskedValue = %q", ent.MaskedValue)
	}
}

func TestDetectEndpointEmptyText(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	resp := postJSON(t, ts.URL+"/v1/detect", detectRequest{Text: "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var out errorResponse
	decodeJSON(t, resp, &out)
	if out.Error == "" {
		t.Error("expected an error message")
	}
}

func TestDetectEndpointRateLimit(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{RateLimit: 2, RateWindowSeconds: 60})

	req := detectRequest{Text: "nothing sensitive here", SessionID: "limited"}
	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts.URL+"/v1/detect", req)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, resp.StatusCode)
		}
	}
	resp := postJSON(t, ts.URL+"/v1/detect", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
}

func TestCacheLifecycle(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	base := ts.URL + "/v1/sessions/sess-1/cache"

	resp := postJSON(t, base, cacheAddRequest{Redactions: []session.Redaction{
		{Value: "123-45-6789", MaskedValue: "***-**-6789", Type: pii.TypeSSN},
	}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add: status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, base+"/find", cacheFindRequest{
		Text: "repeat of 123-45-6789 appears here",
	})
	var found struct {
		Matches []session.Match `json:"matches"`
	}
	decodeJSON(t, resp, &found)
	if len(found.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(found.Matches))
	}
	if found.Matches[0].MaskedValue != "***-**-6789" {
		t.Errorf("MaskedValue = %q", found.Matches[0].MaskedValue)
	}

	resp, err := http.Get(base)
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	var exported struct {
		Records []session.CachedRedaction `json:"records"`
	}
	decodeJSON(t, resp, &exported)
	if len(exported.Records) != 1 {
		t.Fatalf("expected 1 exported record, got %d", len(exported.Records))
	}
	for _, rec := range exported.Records {
		if strings.Contains(rec.ValueHash, "123-45-6789") {
			t.Error("export leaked a raw value")
		}
	}

	// Import into a fresh session, then confirm the match carries over.
	other := ts.URL + "/v1/sessions/sess-2/cache"
	resp = postJSON(t, other+"/import", cacheImportRequest{Records: exported.Records})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import: status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, other+"/find", cacheFindRequest{Text: "value 123-45-6789"})
	decodeJSON(t, resp, &found)
	if len(found.Matches) != 1 {
		t.Fatalf("expected 1 match after import, got %d", len(found.Matches))
	}

	req, err := http.NewRequest(http.MethodDelete, base, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear: status = %d, want 204", resp.StatusCode)
	}
}

func TestCacheImportRejectsCorruptPayload(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	base := ts.URL + "/v1/sessions/sess-3/cache"

	bad := session.CachedRedaction{MaskedValue: "***", Type: pii.TypeSSN}
	resp := postJSON(t, base+"/import", cacheImportRequest{
		Records: []session.CachedRedaction{bad},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMaskEndpoint(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	base := ts.URL + "/v1/sessions/sess-4/cache"

	resp := postJSON(t, base, cacheAddRequest{Redactions: []session.Redaction{
		{Value: "jane.doe@example.com", MaskedValue: "j***@example.com", Type: pii.TypeEmail},
	}})
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/v1/mask", maskRequest{
		Text:      "Contact jane.doe@example.com today.",
		SessionID: "sess-4",
	})
	var out maskResponse
	decodeJSON(t, resp, &out)
	if out.MaskedText != "Contact j***@example.com today." {
		t.Errorf("MaskedText = %q", out.MaskedText)
	}
	if out.Matches != 1 {
		t.Errorf("Matches = %d, want 1", out.Matches)
	}
}
