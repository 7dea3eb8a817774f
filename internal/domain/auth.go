package domain

// Role is the authentication tier of a caller. There is no plain logged-in tier.
type Role int

const (
	RoleAnonymous Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "anonymous"
}

// Viewer identifies who is reading a result: an admin, or a participant claiming an id.
type Viewer struct {
	Role          Role
	ParticipantID int64
}

// AdminViewer returns the viewer for an authenticated admin.
func AdminViewer() Viewer {
	return Viewer{Role: RoleAdmin}
}

// ParticipantViewer returns the viewer for an anonymous participant.
func ParticipantViewer(participantID int64) Viewer {
	return Viewer{Role: RoleAnonymous, ParticipantID: participantID}
}

// IsAdmin reports whether the viewer may see answer keys.
func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin
}
