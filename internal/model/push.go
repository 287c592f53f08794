package model

import "time"

type PushSubscription struct {
	ID         int64     `json:"id"`
	MemberID   string    `json:"member_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Alert is a one-shot local alert. Tag deduplicates delivery: two alerts with
// the same tag are shown at most once.
type Alert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}
