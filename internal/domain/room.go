package domain

type RoomName string

// ViewersRoom holds every viewer connection regardless of which robot
// it watches.
const ViewersRoom RoomName = "viewers"

// RobotRoom is where command relays for a robot land.
func RobotRoom(id RobotID) RoomName {
	return RoomName("robot:" + string(id))
}

// RobotViewersRoom is the fan-out target for a robot's binary frames.
func RobotViewersRoom(id RobotID) RoomName {
	return RoomName("robot:" + string(id) + ":viewers")
}
