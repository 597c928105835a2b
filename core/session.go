package core

// Session is the browser-side correlation handle. It is owned by the
// transport layer; the orchestrator only ever receives the id as a
// parameter and reports which user id to bind on success.
type Session struct {
	ID     string
	UserID string // empty until the session is authenticated
}

// Authenticated reports whether an identity has been bound to the session.
func (s *Session) Authenticated() bool {
	return s.UserID != ""
}
