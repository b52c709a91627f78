// Package notifier holds the registry model for pub/sub notifier services the
// client is subscribed to.
package notifier

// Registration tracks one notifier service: its API key, the subscribed topic
// ids and the watermark of the last consumed notification.
type Registration struct {
	URL                string          `json:"url"`
	APIKey             string          `json:"api_key"`
	Topics             map[string]bool `json:"topics"`
	FromNotificationID int64           `json:"from_notification_id"`
}

// Clone returns a copy with an independent topic set.
func (r Registration) Clone() Registration {
	out := r
	out.Topics = make(map[string]bool, len(r.Topics))
	for id := range r.Topics {
		out.Topics[id] = true
	}
	return out
}
