package authsdk

// TokenResponse is returned by the login and refresh endpoints.
type TokenResponse struct {
	// AccessToken is the RS256 JWT presented as a bearer token.
	AccessToken string `json:"access_token"`

	// RefreshToken is only set on login. Refresh reuses the existing one.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`
}

// HealthResponse is the body of /livez and /readyz on both services.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports individual dependencies. Fields a service does not
// have are omitted.
type HealthChecks struct {
	Store string `json:"store,omitempty"`
	Key   string `json:"key,omitempty"`
}

// Health statuses.
const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// WhoAmIResponse is the gateway's view of a verified bearer token.
type WhoAmIResponse struct {
	Subject  string `json:"sub"`
	UserID   string `json:"userId,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Username string `json:"username,omitempty"`
	Expires  int64  `json:"exp"`
}
