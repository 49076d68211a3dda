package constant

const (
	DefaultUserRole = "user"
	AdminRole       = "admin"

	// SessionIDHeader carries the client's session id on authenticated requests.
	SessionIDHeader = "X-Session-ID"

	// IdentityLocalKey is the fiber locals key the middleware stores the
	// resolved identity under.
	IdentityLocalKey = "identity"
)
