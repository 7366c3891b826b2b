package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"seniorcare-notify/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeScanRunner struct {
	report *models.ScanReport
	err    error
	calls  int
}

func (f *fakeScanRunner) Run(ctx context.Context) (*models.ScanReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeEscalator struct {
	results map[string]models.EscalationResult
	events  []*models.NotificationEvent
}

func (f *fakeEscalator) Escalate(ctx context.Context, event *models.NotificationEvent, guardian models.Guardian) models.EscalationResult {
	f.events = append(f.events, event)
	return f.results[guardian.ID]
}

type fakeDirectory struct {
	guardians  []models.Guardian
	findErr    error
	seniorName string
	nameErr    error
}

func (f *fakeDirectory) FindGuardiansOf(ctx context.Context, seniorID string) ([]models.Guardian, error) {
	return f.guardians, f.findErr
}

func (f *fakeDirectory) GetSeniorName(ctx context.Context, seniorID string) (string, error) {
	return f.seniorName, f.nameErr
}

type fakeAckReceiver struct {
	acked []string
	err   error
}

func (f *fakeAckReceiver) Acknowledge(ctx context.Context, notificationID string) error {
	f.acked = append(f.acked, notificationID)
	return f.err
}

func newTestRouter(scanner ScanRunner, escalator Escalator, directory GuardianDirectory, acks AckReceiver) *Router {
	logger := zap.NewNop()
	handler := NewNotifyHandler(scanner, escalator, directory, acks, logger)
	router := NewRouter(logger)
	router.RegisterNotifyRoutes(handler)
	return router
}

func doRequest(t *testing.T, router *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) Result[json.RawMessage] {
	t.Helper()
	var result Result[json.RawMessage]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

// TestCheckMedication_Success 测试扫描触发成功返回报告
func TestCheckMedication_Success(t *testing.T) {
	scanner := &fakeScanRunner{report: &models.ScanReport{
		OverdueCount: 2,
		CheckedAt:    "09:30",
		Results: []models.SubjectResult{
			{SeniorID: "senior-1", GuardianID: "guardian-1", Notified: true},
		},
	}}
	router := newTestRouter(scanner, &fakeEscalator{}, &fakeDirectory{}, &fakeAckReceiver{})

	rec := doRequest(t, router, http.MethodPost, "/notify/api/v1/check-medication", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Equal(t, 1, scanner.calls)

	var report models.ScanReport
	require.NoError(t, json.Unmarshal(result.Result, &report))
	assert.Equal(t, 2, report.OverdueCount)
	assert.Equal(t, "09:30", report.CheckedAt)
}

// TestCheckMedication_ScanError 测试扫描失败返回 500
func TestCheckMedication_ScanError(t *testing.T) {
	scanner := &fakeScanRunner{err: errors.New("db unavailable")}
	router := newTestRouter(scanner, &fakeEscalator{}, &fakeDirectory{}, &fakeAckReceiver{})

	rec := doRequest(t, router, http.MethodPost, "/notify/api/v1/check-medication", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultError, result.Code)
}

// TestCheckMedication_MethodNotAllowed 测试 GET 返回 405
func TestCheckMedication_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(&fakeScanRunner{}, &fakeEscalator{}, &fakeDirectory{}, &fakeAckReceiver{})

	rec := doRequest(t, router, http.MethodGet, "/notify/api/v1/check-medication", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// TestEmergency_EscalatesAllGuardians 测试紧急事件逐个升级所有保护人
func TestEmergency_EscalatesAllGuardians(t *testing.T) {
	escalator := &fakeEscalator{results: map[string]models.EscalationResult{
		"guardian-1": {PushSent: true, Acknowledged: true},
		"guardian-2": {SMSSent: true},
	}}
	directory := &fakeDirectory{
		seniorName: "김영희",
		guardians: []models.Guardian{
			{ID: "guardian-1", Name: "보호자A", Phone: "01011112222", PushToken: "tok-1"},
			{ID: "guardian-2", Name: "보호자B", Phone: "01033334444"},
		},
	}
	router := newTestRouter(&fakeScanRunner{}, escalator, directory, &fakeAckReceiver{})

	rec := doRequest(t, router, http.MethodPost, "/notify/api/v1/emergency", map[string]string{
		"senior_id":     "senior-1",
		"location_link": "https://maps.example.com/p/abc",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)

	var payload struct {
		EventID string `json:"event_id"`
		Results []struct {
			GuardianID   string `json:"guardian_id"`
			PushSent     bool   `json:"push_sent"`
			SMSSent      bool   `json:"sms_sent"`
			Acknowledged bool   `json:"acknowledged"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(result.Result, &payload))
	assert.NotEmpty(t, payload.EventID)
	require.Len(t, payload.Results, 2)
	assert.True(t, payload.Results[0].Acknowledged)
	assert.True(t, payload.Results[1].SMSSent)

	// 所有保护人共享同一事件
	require.Len(t, escalator.events, 2)
	assert.Equal(t, escalator.events[0].EventID, escalator.events[1].EventID)
	assert.Equal(t, models.EventKindEmergency, escalator.events[0].Kind)
	require.NotNil(t, escalator.events[0].LocationLink)
	assert.Equal(t, "https://maps.example.com/p/abc", *escalator.events[0].LocationLink)
}

// TestEmergency_MissingSeniorID 测试缺少 senior_id 返回 400
func TestEmergency_MissingSeniorID(t *testing.T) {
	router := newTestRouter(&fakeScanRunner{}, &fakeEscalator{}, &fakeDirectory{}, &fakeAckReceiver{})

	rec := doRequest(t, router, http.MethodPost, "/notify/api/v1/emergency", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestEmergency_NoGuardians 测试无保护人返回失败信封
func TestEmergency_NoGuardians(t *testing.T) {
	directory := &fakeDirectory{seniorName: "김영희"}
	router := newTestRouter(&fakeScanRunner{}, &fakeEscalator{}, directory, &fakeAckReceiver{})

	rec := doRequest(t, router, http.MethodPost, "/notify/api/v1/emergency", map[string]string{
		"senior_id": "senior-1",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultError, result.Code)
	assert.Equal(t, "no guardians linked", result.Message)
}

// TestEmergency_DirectoryError 测试目录查询失败
func TestEmergency_DirectoryError(t *testing.T) {
	directory := &fakeDirectory{seniorName: "김영희", findErr: errors.New("query failed")}
	router := newTestRouter(&fakeScanRunner{}, &fakeEscalator{}, directory, &fakeAckReceiver{})

	rec := doRequest(t, router, http.MethodPost, "/notify/api/v1/emergency", map[string]string{
		"senior_id": "senior-1",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultError, result.Code)
}

// TestAck_Success 测试确认回调写入成功
func TestAck_Success(t *testing.T) {
	acks := &fakeAckReceiver{}
	router := newTestRouter(&fakeScanRunner{}, &fakeEscalator{}, &fakeDirectory{}, acks)

	rec := doRequest(t, router, http.MethodPost, "/notify/api/v1/ack", map[string]string{
		"notification_id": "evt-1:guardian-1",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Equal(t, []string{"evt-1:guardian-1"}, acks.acked)
}

// TestAck_MissingNotificationID 测试缺少 notification_id 返回 400
func TestAck_MissingNotificationID(t *testing.T) {
	acks := &fakeAckReceiver{}
	router := newTestRouter(&fakeScanRunner{}, &fakeEscalator{}, &fakeDirectory{}, acks)

	rec := doRequest(t, router, http.MethodPost, "/notify/api/v1/ack", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, acks.acked)
}

// TestHealthz 测试健康检查
func TestHealthz(t *testing.T) {
	router := newTestRouter(&fakeScanRunner{}, &fakeEscalator{}, &fakeDirectory{}, &fakeAckReceiver{})

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
