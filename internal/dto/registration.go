package dto

// RegisterBody asks for a seat. Student is required when staff act on
// behalf of a student and must be empty or the caller otherwise.
type RegisterBody struct {
	Student string `json:"student"`
	Index   string `json:"index" validate:"required"`
}

// ChangeIndexBody moves the caller's registration to another index.
type ChangeIndexBody struct {
	Student string `json:"student"`
	To      string `json:"to" validate:"required"`
}

// SwapBody exchanges seats with a peer. Students must prove the peer's
// consent with the peer's password.
type SwapBody struct {
	Student      string `json:"student"`
	Index        string `json:"index" validate:"required"`
	PeerStudent  string `json:"peer_student" validate:"required"`
	PeerIndex    string `json:"peer_index" validate:"required"`
	PeerPassword string `json:"peer_password"`
}
