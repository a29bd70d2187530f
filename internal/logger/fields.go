package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the asynchronous job ID
	FieldJobID = "job_id"

	// FieldCollection is the tenant knowledge-base collection name
	FieldCollection = "collection"

	// FieldTarget is the model target serving a request
	FieldTarget = "target"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldDocumentID is the document being ingested
	FieldDocumentID = "document_id"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
