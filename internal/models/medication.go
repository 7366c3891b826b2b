package models

// 服药记录状态
const (
	MedicationStatusPending = "pending"
	MedicationStatusTaken   = "taken"
	MedicationStatusMissed  = "missed"
)

// MedicationLog 服药记录（对应 medication_logs 表）
// scheduled_date 为日历日期 "2026-09-01"，scheduled_time 为 "HH:MM"
type MedicationLog struct {
	ID               string `json:"id" db:"id"`
	UserID           string `json:"user_id" db:"user_id"`
	MedicationID     string `json:"medication_id" db:"medication_id"`
	ScheduleID       string `json:"schedule_id" db:"schedule_id"`
	MedicationName   string `json:"medication_name" db:"medication_name"`
	ScheduledDate    string `json:"scheduled_date" db:"scheduled_date"`
	ScheduledTime    string `json:"scheduled_time" db:"scheduled_time"`
	Status           string `json:"status" db:"status"` // pending, taken, missed
	NotifiedGuardian bool   `json:"notified_guardian" db:"notified_guardian"`
}
