package events

// Topic constants for domain events emitted by the platform.
const (
	TopicCalculationSaved   = "calculation.saved"
	TopicCalculationDeleted = "calculation.deleted"
	TopicProductCreated     = "product.created"
	TopicProductUpdated     = "product.updated"
	TopicProductDelisted    = "product.delisted"
	TopicUserRegistered     = "user.registered"
	TopicMessageSent        = "message.sent"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicCalculationSaved,
		TopicCalculationDeleted,
		TopicProductCreated,
		TopicProductUpdated,
		TopicProductDelisted,
		TopicUserRegistered,
		TopicMessageSent,
	}
}
