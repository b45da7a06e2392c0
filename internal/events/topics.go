package events

// Topic constants for domain events emitted by the engine.
const (
	TopicOrderStatusChanged      = "order.status_changed"
	TopicShippingSettingsChanged = "shipping.settings_changed"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderStatusChanged,
		TopicShippingSettingsChanged,
	}
}
