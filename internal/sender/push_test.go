package sender

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"seniorcare-notify/internal/config"
	"seniorcare-notify/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRecorder 测试用投递日志
type fakeRecorder struct {
	mu       sync.Mutex
	err      error
	attempts []models.DeliveryAttempt
}

func (f *fakeRecorder) RecordAttempt(ctx context.Context, channel, recipient, outcome, preview string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.attempts = append(f.attempts, models.DeliveryAttempt{
		Channel:   channel,
		Recipient: recipient,
		Outcome:   outcome,
		Preview:   preview,
	})
	return nil
}

func (f *fakeRecorder) recorded() []models.DeliveryAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.DeliveryAttempt, len(f.attempts))
	copy(out, f.attempts)
	return out
}

func newPushTestConfig(endpoint string) *config.Config {
	cfg := &config.Config{}
	cfg.Push.Endpoint = endpoint
	cfg.Push.ServerKey = "test-server-key"
	cfg.Push.DryRun = false
	return cfg
}

func TestPushSender_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key=test-server-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":1,"failure":0}`))
	}))
	defer server.Close()

	recorder := &fakeRecorder{}
	s := NewPushSender(newPushTestConfig(server.URL), recorder, zap.NewNop())

	delivered := s.Send(context.Background(), "fcm-token-abc", PushPayload{
		Title: "테스트 알림",
		Body:  "내용",
		Tag:   "guardian-alert-senior-1",
		URL:   "/guardian?senior=senior-1",
	})

	assert.True(t, delivered)
	attempts := recorder.recorded()
	require.Len(t, attempts, 1)
	assert.Equal(t, models.ChannelPush, attempts[0].Channel)
	assert.Equal(t, "fcm-token-abc", attempts[0].Recipient)
	assert.Equal(t, models.OutcomeSent, attempts[0].Outcome)
}

func TestPushSender_Send_ProviderReportsFailure(t *testing.T) {
	// FCM legacy 对无效 token 返回 200 + success:0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":0,"failure":1}`))
	}))
	defer server.Close()

	recorder := &fakeRecorder{}
	s := NewPushSender(newPushTestConfig(server.URL), recorder, zap.NewNop())

	delivered := s.Send(context.Background(), "invalid-token", PushPayload{Title: "t"})

	assert.False(t, delivered)
	attempts := recorder.recorded()
	require.Len(t, attempts, 1)
	assert.Equal(t, models.OutcomeFailed, attempts[0].Outcome)
}

func TestPushSender_Send_ProviderUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立即关闭，模拟提供商不可达

	recorder := &fakeRecorder{}
	s := NewPushSender(newPushTestConfig(server.URL), recorder, zap.NewNop())

	delivered := s.Send(context.Background(), "fcm-token-abc", PushPayload{Title: "t"})

	assert.False(t, delivered)
	attempts := recorder.recorded()
	require.Len(t, attempts, 1)
	assert.Equal(t, models.OutcomeFailed, attempts[0].Outcome)
}

func TestPushSender_Send_EmptyToken(t *testing.T) {
	recorder := &fakeRecorder{}
	s := NewPushSender(newPushTestConfig("http://localhost:0"), recorder, zap.NewNop())

	delivered := s.Send(context.Background(), "", PushPayload{Title: "t"})

	assert.False(t, delivered)
	assert.Empty(t, recorder.recorded())
}

func TestPushSender_Send_DryRun(t *testing.T) {
	cfg := newPushTestConfig("http://localhost:0")
	cfg.Push.DryRun = true

	recorder := &fakeRecorder{}
	s := NewPushSender(cfg, recorder, zap.NewNop())

	// 干跑模式不调用提供商（endpoint 不可达也成功）
	delivered := s.Send(context.Background(), "fcm-token-abc", PushPayload{Title: "t"})

	assert.True(t, delivered)
	attempts := recorder.recorded()
	require.Len(t, attempts, 1)
	assert.Equal(t, models.OutcomeSent, attempts[0].Outcome)
}
