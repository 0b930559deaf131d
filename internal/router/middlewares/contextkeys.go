package middlewares

// ContextKey is used to key context values.
type ContextKey int

const (
	// ContextKeyChain holds the *chains.Chain selected by the request's
	// chain query parameter.
	ContextKeyChain ContextKey = iota
	// ContextKeyAccount holds the common.Address bound to the caller's API
	// key, when one was presented.
	ContextKeyAccount
	// ContextKeyAuthed reports whether the caller presented a valid API key.
	ContextKeyAuthed
)
