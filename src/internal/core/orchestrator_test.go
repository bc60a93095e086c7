package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

type stubProvider struct {
	auditCalls    int
	fixCalls      int
	fixAllCalls   int
	generateCalls int
	err           error
}

func (s *stubProvider) Audit(ctx context.Context, code string) (*internal.AuditReport, error) {
	s.auditCalls++
	if s.err != nil {
		return nil, s.err
	}
	return &internal.AuditReport{ID: "audit-1", Score: 100, Vulnerabilities: []internal.Vulnerability{}}, nil
}

func (s *stubProvider) Fix(ctx context.Context, code string, v internal.Vulnerability) (*internal.FixSuggestion, error) {
	s.fixCalls++
	return &internal.FixSuggestion{VulnerabilityID: v.ID, OriginalCode: code}, s.err
}

func (s *stubProvider) FixAll(ctx context.Context, code string, vs []internal.Vulnerability) (*internal.FixSuggestion, error) {
	s.fixAllCalls++
	return &internal.FixSuggestion{VulnerabilityID: internal.FixAllID, OriginalCode: code}, s.err
}

func (s *stubProvider) Generate(ctx context.Context, prompt string) (*internal.GeneratedContract, error) {
	s.generateCalls++
	return &internal.GeneratedContract{Code: "contract A {}"}, s.err
}

func TestStartAuditRejectsBlankCode(t *testing.T) {
	p := &stubProvider{}
	o := NewOrchestrator(p, p, p)

	for _, code := range []string{"", "   ", "\n\t"} {
		_, err := o.StartAudit(context.Background(), code)
		assert.ErrorIs(t, err, internal.ErrInvalidSubmission)
	}
	assert.Zero(t, p.auditCalls)
}

func TestStartAuditPropagatesFailure(t *testing.T) {
	boom := &internal.RemoteProviderError{Provider: "stub", Err: errors.New("down")}
	p := &stubProvider{err: boom}
	o := NewOrchestrator(p, p, p)

	_, err := o.StartAudit(context.Background(), "contract A {}")
	assert.ErrorIs(t, err, internal.ErrRemoteProvider)
	assert.Equal(t, 1, p.auditCalls)
}

func TestStartAuditDelegates(t *testing.T) {
	p := &stubProvider{}
	o := NewOrchestrator(p, p, p)

	report, err := o.StartAudit(context.Background(), "contract A {}")
	require.NoError(t, err)
	assert.Equal(t, "audit-1", report.ID)
}

func TestGenerateFixDispatch(t *testing.T) {
	p := &stubProvider{}
	o := NewOrchestrator(p, p, p)
	v := internal.Vulnerability{ID: "vuln-2"}

	s, err := o.GenerateFix(context.Background(), "contract A {}", internal.FixTarget{Vulnerability: &v})
	require.NoError(t, err)
	assert.Equal(t, "vuln-2", s.VulnerabilityID)

	s, err = o.GenerateFix(context.Background(), "contract A {}", internal.FixTarget{Vulnerabilities: []internal.Vulnerability{v}})
	require.NoError(t, err)
	assert.Equal(t, internal.FixAllID, s.VulnerabilityID)

	assert.Equal(t, 1, p.fixCalls)
	assert.Equal(t, 1, p.fixAllCalls)

	_, err = o.GenerateFix(context.Background(), "contract A {}", internal.FixTarget{})
	assert.ErrorIs(t, err, internal.ErrInvalidSubmission)
	_, err = o.GenerateFix(context.Background(), " ", internal.FixTarget{Vulnerability: &v})
	assert.ErrorIs(t, err, internal.ErrInvalidSubmission)
	assert.Equal(t, 1, p.fixCalls)
}

func TestGenerate(t *testing.T) {
	p := &stubProvider{}
	o := NewOrchestrator(p, p, p)

	_, err := o.Generate(context.Background(), "")
	assert.ErrorIs(t, err, internal.ErrInvalidSubmission)

	g, err := o.Generate(context.Background(), "an ERC20 token")
	require.NoError(t, err)
	assert.Equal(t, "contract A {}", g.Code)
	assert.Equal(t, 1, p.generateCalls)

	_, err = NewOrchestrator(p, p, nil).Generate(context.Background(), "x")
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	mk := func(sev ...internal.Severity) *internal.AuditReport {
		r := &internal.AuditReport{}
		for _, s := range sev {
			r.Vulnerabilities = append(r.Vulnerabilities, internal.Vulnerability{Severity: s})
		}
		return r
	}
	assert.Equal(t, internal.VerdictApprove, Evaluate(mk()))
	assert.Equal(t, internal.VerdictApprove, Evaluate(mk(internal.SeverityLow)))
	assert.Equal(t, internal.VerdictWarn, Evaluate(mk(internal.SeverityLow, internal.SeverityMedium)))
	assert.Equal(t, internal.VerdictReject, Evaluate(mk(internal.SeverityMedium, internal.SeverityHigh)))
}
