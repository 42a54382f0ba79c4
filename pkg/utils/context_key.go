package utils

// ContextKey namespaces values stored on the request context by the auth
// middleware.
type ContextKey string
