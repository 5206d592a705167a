package constants

// Context keys set by middleware
const (
	// ContextKeyUserID holds the authenticated caller's identity
	ContextKeyUserID = "userID"
	// ContextKeyRequestID holds the request correlation id
	ContextKeyRequestID = "RequestID"
)
