package realm

// Session is one connected peer as seen by the authority side: who the
// connection speaks for, whether that user is privileged, and which shared
// scene they are looking at.
type Session struct {
	UserID      string
	Name        string
	GM          bool
	Scene       string
	CharacterID string

	// ConnID identifies the connection behind this session. A reconnect
	// mints a new one, so a superseded connection's teardown can be told
	// apart from the live session it no longer owns.
	ConnID string
}

// eligibleAuthority reports whether s can mediate transactions for peers on
// the given scene: privileged, connected (it is in the registry at all), and
// co-located.
func (s Session) eligibleAuthority(scene string) bool {
	return s.GM && s.Scene == scene
}
