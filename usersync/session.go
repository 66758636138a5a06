package usersync

// Session holds the user key state of a single page load. In the relay server
// one inbound HTTP request is one page load, so a Session is never shared between
// goroutines.
type Session struct {
	key    string
	synced bool
}

func NewSession() *Session {
	return &Session{}
}

// Key returns the key resolved earlier in this page load, if any.
func (s *Session) Key() string {
	if s == nil {
		return ""
	}
	return s.key
}

// Synced reports whether the sync pixel has already fired for this page load.
func (s *Session) Synced() bool {
	return s != nil && s.synced
}

// Reset forgets the resolved key and re-arms the sync pixel, as a page reload would.
func (s *Session) Reset() {
	if s == nil {
		return
	}
	s.key = ""
	s.synced = false
}
