package dto

type LogoutInput struct {
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id,omitempty"`
}
