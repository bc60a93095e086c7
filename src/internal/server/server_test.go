package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/admi-n/nullshot-auditor/src/internal"
	"github.com/admi-n/nullshot-auditor/src/internal/core"
	"github.com/admi-n/nullshot-auditor/src/internal/download"
	"github.com/admi-n/nullshot-auditor/src/internal/handler"
	"github.com/admi-n/nullshot-auditor/src/internal/provider"
	"github.com/admi-n/nullshot-auditor/src/internal/store"
	"github.com/admi-n/nullshot-auditor/src/internal/telemetry"
	"github.com/admi-n/nullshot-auditor/src/strategy/templates"
)

const bank = `pragma solidity ^0.8.20;

contract Bank {
    mapping(address => uint256) public balances;

    function withdraw(uint256 amount) public {
        (bool ok, ) = msg.sender.call{value: amount}("");
        require(ok);
        balances[msg.sender] -= amount;
    }
}
`

type down struct{ err error }

func (d down) Audit(context.Context, string) (*internal.AuditReport, error) { return nil, d.err }
func (d down) Fix(context.Context, string, internal.Vulnerability) (*internal.FixSuggestion, error) {
	return nil, d.err
}
func (d down) FixAll(context.Context, string, []internal.Vulnerability) (*internal.FixSuggestion, error) {
	return nil, d.err
}
func (d down) Generate(context.Context, string) (*internal.GeneratedContract, error) {
	return nil, d.err
}

type fetcher map[string]*internal.Contract

func (f fetcher) Fetch(ctx context.Context, address string) (*internal.Contract, error) {
	if c, ok := f[address]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%s: %w", address, download.ErrUnverified)
}

func heuristic(t *testing.T) *core.Orchestrator {
	t.Helper()
	lib, err := templates.Load()
	require.NoError(t, err)
	return core.NewOrchestrator(provider.NewHeuristicAuditor(), provider.NewHeuristicFixer(), provider.NewHeuristicGenerator(lib))
}

func newStore(t *testing.T) *store.SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	st, err := store.NewSQLStore(context.Background(), db, "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestServer(t *testing.T, svc *handler.Service) *httptest.Server {
	t.Helper()
	srv := New(svc, Config{Provider: "heuristic", Metrics: telemetry.NewMetrics(nil)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func heuristicServer(t *testing.T, opts handler.Options) *httptest.Server {
	t.Helper()
	svc, err := handler.NewService(heuristic(t), opts)
	require.NoError(t, err)
	return newTestServer(t, svc)
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func jsonBody(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestAuditRequiresCode(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})

	for _, body := range []string{`{}`, `{"code": "   "}`} {
		resp, out := post(t, ts.URL+"/audit", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Code is required", out["error"])
	}
}

func TestAuditReturnsReportAndVerdict(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})

	resp, out := post(t, ts.URL+"/audit", jsonBody(t, map[string]string{"code": bank}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "REJECT", out["verdict"])
	assert.Equal(t, false, out["isApproved"])
	assert.Equal(t, "heuristic", out["source"])
	assert.True(t, strings.HasPrefix(out["id"].(string), "audit-"))
	assert.NotEmpty(t, out["vulnerabilities"])
}

func TestAuditUnderAPIPrefix(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})
	resp, _ := post(t, ts.URL+"/api/audit", jsonBody(t, map[string]string{"code": "contract A {}"}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuditInvalidJSON(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})
	resp, out := post(t, ts.URL+"/audit", `{"code":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "invalid JSON body")
}

func TestAuditByAddress(t *testing.T) {
	const addr = "0x00000000000000000000000000000000000000aa"
	ts := heuristicServer(t, handler.Options{Fetcher: fetcher{
		addr: {Name: "Bank", Address: addr, Code: bank},
	}})

	resp, out := post(t, ts.URL+"/audit", jsonBody(t, map[string]string{"address": addr}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bank", out["contractName"])
	assert.Equal(t, addr, out["address"])
	assert.Equal(t, "REJECT", out["verdict"])

	resp, _ = post(t, ts.URL+"/audit", jsonBody(t, map[string]string{"address": "0x00000000000000000000000000000000000000bb"}))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAuditByAddressDisabled(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})
	resp, _ := post(t, ts.URL+"/audit", `{"address": "0x00000000000000000000000000000000000000aa"}`)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestRemoteFailureStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"provider", &internal.RemoteProviderError{Provider: "gemini", Err: errors.New("503")}, http.StatusBadGateway},
		{"timeout", fmt.Errorf("remote audit: %w", internal.ErrTimeout), http.StatusGatewayTimeout},
		{"schema", fmt.Errorf("remote audit: %w", internal.ErrSchemaMismatch), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := down{err: tc.err}
			svc, err := handler.NewService(core.NewOrchestrator(d, d, d), handler.Options{})
			require.NoError(t, err)
			ts := newTestServer(t, svc)

			resp, out := post(t, ts.URL+"/audit", `{"code": "contract A {}"}`)
			assert.Equal(t, tc.want, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestRemoteFailureFallsBack(t *testing.T) {
	d := down{err: &internal.RemoteProviderError{Provider: "gemini", Err: errors.New("503")}}
	svc, err := handler.NewService(core.NewOrchestrator(d, d, d), handler.Options{
		Policy:   handler.PolicyFallbackOnError,
		Fallback: heuristic(t),
	})
	require.NoError(t, err)
	ts := newTestServer(t, svc)

	resp, out := post(t, ts.URL+"/audit", jsonBody(t, map[string]string{"code": bank}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "heuristic", out["source"])
}

func TestFixValidation(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})

	resp, out := post(t, ts.URL+"/fix", `{"code": "contract A {}"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Code and vulnerability are required", out["error"])

	resp, out = post(t, ts.URL+"/fix", `{"vulnerability": {"id": "vuln-1", "title": "Reentrancy Vulnerability"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Code and vulnerability are required", out["error"])

	resp, _ = post(t, ts.URL+"/fix", `{"code": "contract A {}", "vulnerabilities": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFixSingle(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})

	body := jsonBody(t, map[string]any{
		"code":          bank,
		"vulnerability": map[string]any{"id": "vuln-1", "title": "Reentrancy Vulnerability", "severity": "High"},
	})
	resp, out := post(t, ts.URL+"/fix", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "vuln-1", out["vulnerabilityId"])
	assert.Contains(t, out["fixedCode"], "nonReentrant")
	assert.Equal(t, bank, out["originalCode"])
}

func TestFixBatch(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})

	body := jsonBody(t, map[string]any{
		"code": bank,
		"vulnerabilities": []map[string]any{
			{"id": "vuln-1", "title": "Reentrancy Vulnerability", "severity": "High"},
			{"id": "vuln-2", "title": "Potential Integer Overflow", "severity": "Medium"},
		},
	})
	resp, out := post(t, ts.URL+"/fix", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, internal.FixAllID, out["vulnerabilityId"])
	assert.Contains(t, out["fixedCode"], "nonReentrant")
}

func TestGenerate(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})

	resp, out := post(t, ts.URL+"/generate", `{"prompt": ""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Prompt is required", out["error"])

	resp, out = post(t, ts.URL+"/generate", `{"prompt": "an ERC20 token"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out["code"], "contract")
	assert.Equal(t, "heuristic", out["source"])
}

func TestReportsAndFeedback(t *testing.T) {
	ts := heuristicServer(t, handler.Options{Store: newStore(t)})

	_, audited := post(t, ts.URL+"/audit", jsonBody(t, map[string]string{"code": bank}))
	id := audited["id"].(string)

	resp, err := http.Get(ts.URL + "/reports?limit=5")
	require.NoError(t, err)
	var recs []store.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	resp.Body.Close()
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].Report.ID)
	assert.Equal(t, audited["historyId"], recs[0].ID)

	resp, _ = post(t, ts.URL+"/reports/"+id+"/feedback", `{"accepted": true, "comment": "useful"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = post(t, ts.URL+"/reports/"+id+"/feedback", `{"comment": "missing verdict"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/reports/" + id)
	require.NoError(t, err)
	var rec store.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	resp.Body.Close()
	assert.Equal(t, internal.VerdictReject, rec.Verdict)
	require.Len(t, rec.Feedback, 1)
	assert.True(t, rec.Feedback[0].Accepted)

	resp, err = http.Get(ts.URL + "/reports/" + recs[0].ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/reports/audit-missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/reports?limit=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportsWithoutStore(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})
	resp, err := http.Get(ts.URL + "/reports")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	post(t, ts.URL+"/audit", `{}`)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(raw), `path="POST /audit"`)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := heuristicServer(t, handler.Options{})
	resp, err := http.Get(ts.URL + "/audit")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("x: %w", internal.ErrInvalidSubmission)))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(download.ErrNotContract))
	assert.Equal(t, http.StatusNotFound, statusFor(store.ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
