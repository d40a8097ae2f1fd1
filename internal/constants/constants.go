package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixDelivery = "delivery:"
	CacheKeyPrefixFragment = "fragments:"
	CacheKeyPrefixIdentity = "identity:"
)

const (
	DefaultMessageTopic = "service_messages"
	DefaultStatusTopic  = "status_events"
)

const (
	DefaultMongoDBName           = "courier"
	WabaRoutesCollection         = "waba_routes"
	DiagnosticEventsCollection   = "diagnostics"
	DefaultMongoOperationTimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultDedupTTLSeconds    = 86400
	DefaultFragmentTTLSeconds = 600
	DefaultSweepInterval      = 60 * time.Second
)

const (
	DefaultEvaluatorTimeout = 8 * time.Second
	DefaultForwardTimeout   = 10 * time.Second
)

// Diagnostic event types recorded for operator attention.
const (
	EventIncompleteMessage  = "IncompleteMessage"
	EventPublishFailed      = "PublishFailed"
	EventRoutingUnresolved  = "RoutingUnresolved"
	EventWorkflowStepFailed = "WorkflowStepFailed"
)
