package domain

// AuthPayload is the identity carried by an authentication token
type AuthPayload struct {
	UserID     string   `json:"user_id"`
	Username   string   `json:"username"`
	Admin      bool     `json:"admin"`
	Permission []string `json:"permission"`
}

type LoginResponse struct {
	Token string `json:"token"`
}
