package events

// Topic constants for reference data changes that affect cached quotes.
const (
	TopicModifierChanged = "modifier.changed"
	TopicModifierDeleted = "modifier.deleted"
	TopicProductRepriced = "product.repriced"
	TopicZoneChanged     = "zone.changed"
	TopicSegmentChanged  = "segment.changed"
)

// DefaultTopics returns the canonical list of emitted topics.
func DefaultTopics() []string {
	return []string{
		TopicModifierChanged,
		TopicModifierDeleted,
		TopicProductRepriced,
		TopicZoneChanged,
		TopicSegmentChanged,
	}
}
