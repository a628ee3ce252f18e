package entities

// Peer is the shared-store record of one account, living at users/{username}.
// online and lastSeen are written only by the peer's own session; everyone
// else just reads them.
type Peer struct {
	Username        string `json:"username,omitempty"`
	UID             string `json:"uid,omitempty"`
	Email           string `json:"email,omitempty"`
	ProfilePhotoURL string `json:"profilePhotoUrl,omitempty"`
	Online          bool   `json:"online"`
	LastSeen        int64  `json:"lastSeen,omitempty"`
}

type SignupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	ProfilePhotoURL string `json:"profile_photo_url,omitempty"`
}

// UsernameReservation lives at usernames/{handle} and backs the signup
// uniqueness pre-check.
type UsernameReservation struct {
	UID        string `json:"uid"`
	ReservedAt int64  `json:"reservedAt"`
}

// LoginResponse carries the session token issued on signup or attach.
type LoginResponse struct {
	Username  string `json:"username"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}
