package kvstore

// Keys shared by the session workspace and the audit store.
const (
	KeySourceCode = "harmonizer-source-code"
	KeyOutputCode = "harmonizer-output-code"
	KeyIntentions = "harmonizer-intentions"
	KeyAuditLog   = "harmonizer-audit-log"
)
