package model

import "time"

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
)

type SystemNotification struct {
	ID              string           `json:"id"`
	Message         string           `json:"message"`
	Timestamp       time.Time        `json:"timestamp"`
	IsRead          bool             `json:"is_read"`
	Type            NotificationType `json:"type"`
	RelatedMemberID string           `json:"related_member_id,omitempty"`
}
