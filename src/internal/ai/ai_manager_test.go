package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

type fakeClient struct {
	reply string
	err   error
	delay time.Duration
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeClient) GetName() string { return "fake" }
func (f *fakeClient) Close() error    { return nil }

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveRemoteCall(provider, outcome string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestManagerComplete(t *testing.T) {
	obs := &recordingObserver{}
	m := NewManager(&fakeClient{reply: `{"ok":true}`}, ManagerConfig{Observer: obs})

	out, err := m.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, []string{"ok"}, obs.outcomes)
	assert.Equal(t, "fake", m.GetClientInfo())
}

func TestManagerEmptyResponse(t *testing.T) {
	m := NewManager(&fakeClient{reply: "  \n"}, ManagerConfig{})
	_, err := m.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, internal.ErrNoResponseContent)
}

func TestManagerTimeout(t *testing.T) {
	m := NewManager(&fakeClient{reply: "late", delay: time.Second}, ManagerConfig{Timeout: 20 * time.Millisecond})
	_, err := m.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, internal.ErrTimeout)
	assert.True(t, internal.IsRemoteFailure(err))
}

func TestManagerRemoteFailure(t *testing.T) {
	cause := errors.New("429 too many requests")
	m := NewManager(&fakeClient{err: cause}, ManagerConfig{})
	_, err := m.Complete(context.Background(), "p")

	var rpe *internal.RemoteProviderError
	require.ErrorAs(t, err, &rpe)
	assert.Equal(t, "fake", rpe.Provider)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, internal.ErrRemoteProvider)
}

func TestManagerCallerCancel(t *testing.T) {
	m := NewManager(&fakeClient{reply: "x", delay: time.Second}, ManagerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Complete(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, internal.IsRemoteFailure(err))
}

func TestNewAIClient(t *testing.T) {
	c, err := NewAIClient(AIClientConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.Contains(t, c.GetName(), "ollama")

	c, err = NewAIClient(AIClientConfig{Provider: "deepseek", APIKey: "k"})
	require.NoError(t, err)
	assert.Contains(t, c.GetName(), "deepseek")

	_, err = NewAIClient(AIClientConfig{Provider: "gemini"})
	assert.Error(t, err, "missing api key")

	_, err = NewAIClient(AIClientConfig{Provider: "claude"})
	assert.Error(t, err)

	assert.NoError(t, ValidateProvider("heuristic"))
	assert.Error(t, ValidateProvider("nope"))
}
