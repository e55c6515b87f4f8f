package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Notification is one entry of the server activity feed.
type Notification struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

var notificationTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON accepts the server's isoformat()+"Z" timestamps, including the
// "+00:00Z" form produced for timezone-aware rows. An unparsable time is left zero.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var wire struct {
		Time    string `json:"time"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	n.Message = wire.Message
	n.Time = parseNotificationTime(wire.Time)
	return nil
}

func parseNotificationTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if strings.HasSuffix(raw, "+00:00Z") {
		raw = strings.TrimSuffix(raw, "+00:00Z") + "Z"
	}
	for _, layout := range notificationTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
