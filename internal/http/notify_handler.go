package httpapi

import (
	"context"
	"net/http"

	"seniorcare-notify/internal/escalation"
	"seniorcare-notify/internal/models"

	"go.uber.org/zap"
)

// ScanRunner 扫描任务接口
type ScanRunner interface {
	Run(ctx context.Context) (*models.ScanReport, error)
}

// Escalator 升级执行接口
type Escalator interface {
	Escalate(ctx context.Context, event *models.NotificationEvent, guardian models.Guardian) models.EscalationResult
}

// GuardianDirectory 保护人目录接口
type GuardianDirectory interface {
	FindGuardiansOf(ctx context.Context, seniorID string) ([]models.Guardian, error)
	GetSeniorName(ctx context.Context, seniorID string) (string, error)
}

// AckReceiver 确认回调接口
type AckReceiver interface {
	Acknowledge(ctx context.Context, notificationID string) error
}

// NotifyHandler 通知服务 Handler
// 三个入口：外部 cron 触发的扫描、老人主动触发的紧急事件、客户端确认回调
type NotifyHandler struct {
	scanner   ScanRunner
	escalator Escalator
	directory GuardianDirectory
	acks      AckReceiver
	logger    *zap.Logger
}

// NewNotifyHandler 创建通知服务 Handler
func NewNotifyHandler(
	scanner ScanRunner,
	escalator Escalator,
	directory GuardianDirectory,
	acks AckReceiver,
	logger *zap.Logger,
) *NotifyHandler {
	return &NotifyHandler{
		scanner:   scanner,
		escalator: escalator,
		directory: directory,
		acks:      acks,
		logger:    logger,
	}
}

// CheckMedication 扫描触发端点（外部 cron 每 30 分钟调用一次）
func (h *NotifyHandler) CheckMedication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.scanner.Run(ctx)
	if err != nil {
		h.logger.Error("Overdue scan failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(report))
}

// emergencyRequest 紧急事件请求体
type emergencyRequest struct {
	SeniorID     string `json:"senior_id"`
	LocationLink string `json:"location_link"`
}

// emergencyGuardianResult 单个保护人的升级结果
type emergencyGuardianResult struct {
	GuardianID   string `json:"guardian_id"`
	PushSent     bool   `json:"push_sent"`
	SMSSent      bool   `json:"sms_sent"`
	Acknowledged bool   `json:"acknowledged"`
}

// Emergency 紧急事件端点（不经过扫描任务，直接进入编排器）
// 每次触发都是新事件，不受 notified 幂等标记约束
func (h *NotifyHandler) Emergency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req emergencyRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.SeniorID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("senior_id is required"))
		return
	}

	seniorName, err := h.directory.GetSeniorName(ctx, req.SeniorID)
	if err != nil {
		h.logger.Error("Failed to resolve senior",
			zap.String("senior_id", req.SeniorID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	guardians, err := h.directory.FindGuardiansOf(ctx, req.SeniorID)
	if err != nil {
		h.logger.Error("Failed to find guardians",
			zap.String("senior_id", req.SeniorID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if len(guardians) == 0 {
		writeJSON(w, http.StatusOK, Fail("no guardians linked"))
		return
	}

	var locationLink *string
	if req.LocationLink != "" {
		locationLink = &req.LocationLink
	}
	event := escalation.NewEmergencyEvent(req.SeniorID, seniorName, locationLink)

	h.logger.Info("Emergency triggered",
		zap.String("event_id", event.EventID),
		zap.String("senior_id", req.SeniorID),
		zap.Int("guardian_count", len(guardians)),
	)

	// 逐个保护人升级，单个失败不影响其余
	results := make([]emergencyGuardianResult, 0, len(guardians))
	for _, guardian := range guardians {
		escResult := h.escalator.Escalate(ctx, event, guardian)
		results = append(results, emergencyGuardianResult{
			GuardianID:   guardian.ID,
			PushSent:     escResult.PushSent,
			SMSSent:      escResult.SMSSent,
			Acknowledged: escResult.Acknowledged,
		})
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"event_id": event.EventID,
		"results":  results,
	}))
}

// ackRequest 确认回调请求体
type ackRequest struct {
	NotificationID string `json:"notification_id"`
}

// Ack 确认回调端点（保护人客户端收到 Push 后上报）
func (h *NotifyHandler) Ack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ackRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.NotificationID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("notification_id is required"))
		return
	}

	if err := h.acks.Acknowledge(ctx, req.NotificationID); err != nil {
		h.logger.Error("Failed to acknowledge notification",
			zap.String("notification_id", req.NotificationID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok[any](nil))
}
