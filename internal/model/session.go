package model

import "context"

// Session identifies who is working and on behalf of which tenant.
// The user owns the private and stage spaces; the tenant scopes every space.
type Session struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}

// DefaultUser is used when no session user is provided.
const DefaultUser = "anonymous"

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session carried by ctx, or a session for
// DefaultUser when none is set.
func SessionFrom(ctx context.Context) Session {
	s, ok := ctx.Value(sessionKey{}).(Session)
	if !ok || s.UserID == "" {
		s.UserID = DefaultUser
	}
	return s
}

// SpaceName returns the storage space name for sp in this session.
// Public is shared by all users of a tenant; Private and Stage are per user.
func (s Session) SpaceName(sp Space) string {
	name := "public"
	if sp != SpacePublic {
		user := s.UserID
		if user == "" {
			user = DefaultUser
		}
		name = "private/" + user
	}
	if s.TenantID != "" {
		return s.TenantID + ":" + name
	}
	return name
}
