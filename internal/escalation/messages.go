package escalation

import (
	"fmt"

	"seniorcare-notify/internal/models"
	"seniorcare-notify/internal/sender"
)

// BuildPushPayload 构建事件的 Push 通知内容
// tag 以老人 ID 为去重键，同一老人的重复告警在客户端折叠
func BuildPushPayload(event *models.NotificationEvent) sender.PushPayload {
	payload := sender.PushPayload{
		Tag: "guardian-alert-" + event.SeniorID,
		URL: "/guardian?senior=" + event.SeniorID,
	}

	switch event.Kind {
	case models.EventKindEmergency:
		payload.Title = "[긴급] 시니어케어 긴급 신고"
		payload.Body = fmt.Sprintf("%s 어르신이 긴급 신고를 하셨습니다. 즉시 확인해 주세요.", event.SeniorName)
	default:
		payload.Title = fmt.Sprintf("%s 어르신 미복용 알림", event.SeniorName)
		payload.Body = fmt.Sprintf("%s을(를) 아직 복용하지 않았습니다", event.Summary)
	}

	return payload
}

// BuildSMSText 构建事件的 SMS 文案
// 紧急事件带可选位置链接
func BuildSMSText(event *models.NotificationEvent) string {
	switch event.Kind {
	case models.EventKindEmergency:
		text := fmt.Sprintf("[시니어케어 긴급] %s 어르신이 긴급 신고를 하셨습니다. 즉시 확인해 주세요.", event.SeniorName)
		if event.LocationLink != nil && *event.LocationLink != "" {
			text += " " + *event.LocationLink
		}
		return text
	default:
		return fmt.Sprintf("[시니어케어] %s 어르신이 %s 복약을 놓치셨습니다. 확인해 주세요.", event.SeniorName, event.Summary)
	}
}
