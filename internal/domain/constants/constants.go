// Package constants holds identifiers shared across layers.
package constants

// Pub/Sub provider names accepted by the pubsub.provider setting.
const (
	PubSubProviderNone   = ""
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
	PubSubProviderKafka  = "kafka"
	PubSubProviderNATS   = "nats"
)

// Unique index names on the users table.
const (
	UsersUsernameIndex = "idx_users_username"
	UsersEmailIndex    = "idx_users_email"
)

// Pagination defaults for user listings.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)
