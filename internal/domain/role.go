package domain

// Role is assigned by the first identifying message on a connection
// and never changes afterwards.
type Role int

const (
	RoleNone Role = iota
	RoleRobot
	RoleViewer
)

func (r Role) String() string {
	switch r {
	case RoleRobot:
		return "robot"
	case RoleViewer:
		return "viewer"
	default:
		return "none"
	}
}
