package escalation

import (
	"strings"
	"time"

	"seniorcare-notify/internal/models"

	"github.com/google/uuid"
)

// NewMissedDoseEvent 构建未服药通知事件
// logIDs 为关联的 medication_logs 记录，是该事件的幂等键载体
func NewMissedDoseEvent(seniorID, seniorName string, medicationNames, logIDs []string) *models.NotificationEvent {
	return &models.NotificationEvent{
		EventID:    uuid.New().String(),
		Kind:       models.EventKindMissedDose,
		SeniorID:   seniorID,
		SeniorName: seniorName,
		Summary:    strings.Join(medicationNames, ", "),
		LogIDs:     logIDs,
		CreatedAt:  time.Now(),
	}
}

// NewEmergencyEvent 构建紧急事件（由老人主动触发，不经过扫描任务）
func NewEmergencyEvent(seniorID, seniorName string, locationLink *string) *models.NotificationEvent {
	return &models.NotificationEvent{
		EventID:      uuid.New().String(),
		Kind:         models.EventKindEmergency,
		SeniorID:     seniorID,
		SeniorName:   seniorName,
		LocationLink: locationLink,
		CreatedAt:    time.Now(),
	}
}
