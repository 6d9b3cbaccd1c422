package model

// MessageResponse is the body of every plain status or error response.
type MessageResponse struct {
	Message string `json:"message"`
}

// SessionResponse is returned by signup and login. Token carries the access
// token as an Authorization-ready bearer value; the refresh token travels only
// in the httpOnly cookie.
type SessionResponse struct {
	Status string      `json:"status"`
	Token  string      `json:"token"`
	Data   SessionData `json:"data"`
}

type SessionData struct {
	User PublicUser `json:"user"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type ProfileResponse struct {
	Message string  `json:"message"`
	User    Profile `json:"user"`
}
