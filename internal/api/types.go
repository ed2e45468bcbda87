package api

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// AuthLoginRequest is the login payload for the fixed-identity gate.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthMeResponse reports the authentication state of the caller.
type AuthMeResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity,omitempty"`
}

// AuthLoginResponse acknowledges a successful login.
type AuthLoginResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// DeleteCaseResponse acknowledges a case deletion. Warnings carry
// non-fatal blob cleanup failures.
type DeleteCaseResponse struct {
	OK       bool     `json:"ok"`
	Warnings []string `json:"warnings,omitempty"`
}

// InfoResponse describes the running server.
type InfoResponse struct {
	Version        string `json:"version"`
	StorageBackend string `json:"storage_backend"`
	CaseCount      int    `json:"case_count"`
}
