package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

func sampleObject() map[string]any {
	return map[string]any{
		"score":   float64(72),
		"summary": "two issues {nested braces} in text",
		"vulnerabilities": []any{
			map[string]any{"title": "Reentrancy", "severity": "High"},
		},
	}
}

func decodeMap(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestParseRoundTrip(t *testing.T) {
	obj := sampleObject()
	data, err := json.Marshal(obj)
	require.NoError(t, err)

	inputs := map[string]string{
		"bare":     string(data),
		"fenced":   "```json\n" + string(data) + "\n```",
		"untagged": "Here you go:\n```\n" + string(data) + "\n```\nThanks",
		"embedded": "prefix text " + string(data) + " suffix",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			raw, err := Parse(in)
			require.NoError(t, err)
			assert.Equal(t, obj, decodeMap(t, raw))
		})
	}
}

func TestParseFailures(t *testing.T) {
	for _, in := range []string{"", "no json here", "{ broken", "} backwards {"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, internal.ErrUnparsableResponse, in)
	}
}

func TestDecodeAuditReport(t *testing.T) {
	raw := json.RawMessage(`{
		"score": 40,
		"summary": "bad",
		"isApproved": true,
		"timestamp": "1700000000000",
		"vulnerabilities": [
			{"title": "Reentrancy Vulnerability", "description": "d", "severity": "high", "lineStart": 12},
			{"id": "x", "title": "Weird thing", "description": "d", "severity": "Low", "kind": "self-destruct"}
		]
	}`)
	r, err := DecodeAuditReport(raw)
	require.NoError(t, err)
	assert.False(t, r.IsApproved, "approval is derived, not trusted")
	assert.Equal(t, int64(1700000000000), r.Timestamp)
	assert.Empty(t, r.ID)
	require.Len(t, r.Vulnerabilities, 2)
	assert.Equal(t, "vuln-1", r.Vulnerabilities[0].ID)
	assert.Equal(t, internal.SeverityHigh, r.Vulnerabilities[0].Severity)
	assert.Equal(t, internal.KindReentrancy, r.Vulnerabilities[0].Kind)
	require.NotNil(t, r.Vulnerabilities[0].LineStart)
	assert.Equal(t, 12, *r.Vulnerabilities[0].LineStart)
	assert.Equal(t, "x", r.Vulnerabilities[1].ID)
	assert.Equal(t, internal.KindSelfDestruct, r.Vulnerabilities[1].Kind)
}

func TestDecodeAuditReportUniqueIDs(t *testing.T) {
	raw := json.RawMessage(`{
		"score": 50,
		"summary": "s",
		"vulnerabilities": [
			{"id": "vuln-2", "title": "A", "description": "d", "severity": "Low"},
			{"title": "B", "description": "d", "severity": "Low"},
			{"id": "vuln-2", "title": "C", "description": "d", "severity": "Low"},
			{"id": " ", "title": "D", "description": "d", "severity": "Low"}
		]
	}`)
	r, err := DecodeAuditReport(raw)
	require.NoError(t, err)

	ids := make([]string, 0, len(r.Vulnerabilities))
	for _, v := range r.Vulnerabilities {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"vuln-2", "vuln-3", "vuln-4", "vuln-5"}, ids)
}

func TestDecodeAuditReportMismatch(t *testing.T) {
	cases := map[string]string{
		"array root":       `[1,2]`,
		"no vulns":         `{"score": 10, "summary": "s"}`,
		"vulns not array":  `{"score": 10, "summary": "s", "vulnerabilities": "none"}`,
		"score string":     `{"score": "10", "summary": "s", "vulnerabilities": []}`,
		"score range":      `{"score": 140, "summary": "s", "vulnerabilities": []}`,
		"no summary":       `{"score": 10, "vulnerabilities": []}`,
		"missing severity": `{"score": 10, "summary": "s", "vulnerabilities": [{"title": "t", "description": "d"}]}`,
		"bad severity":     `{"score": 10, "summary": "s", "vulnerabilities": [{"title": "t", "description": "d", "severity": "Critical"}]}`,
		"title number":     `{"score": 10, "summary": "s", "vulnerabilities": [{"title": 5, "description": "d", "severity": "Low"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeAuditReport(json.RawMessage(body))
			assert.ErrorIs(t, err, internal.ErrSchemaMismatch)
		})
	}
}

func TestDecodeFix(t *testing.T) {
	code, expl, err := DecodeFix(json.RawMessage(`{"fixedCode": "contract A {}", "explanation": "done"}`))
	require.NoError(t, err)
	assert.Equal(t, "contract A {}", code)
	assert.Equal(t, "done", expl)

	_, _, err = DecodeFix(json.RawMessage(`{"fixedCode": "", "explanation": "done"}`))
	assert.ErrorIs(t, err, internal.ErrSchemaMismatch)
	_, _, err = DecodeFix(json.RawMessage(`{"fixedCode": "x"}`))
	assert.ErrorIs(t, err, internal.ErrSchemaMismatch)
}

func TestDecodeGenerated(t *testing.T) {
	g, err := DecodeGenerated(json.RawMessage(`{"code": "contract A {}", "explanation": "e"}`))
	require.NoError(t, err)
	assert.Equal(t, "contract A {}", g.Code)

	_, err = DecodeGenerated(json.RawMessage(`{"code": 1, "explanation": "e"}`))
	assert.ErrorIs(t, err, internal.ErrSchemaMismatch)
}
