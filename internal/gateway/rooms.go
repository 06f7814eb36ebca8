// internal/gateway/rooms.go
package gateway

import (
	"github.com/gamehall/gamehall/internal/models"
)

// CreateRoom inserts a room in state idle and adds the host as its first
// member, returning the new room id.
func (g *Gateway) CreateRoom(name string, hostID int64, visibility, status string, gameID int64) (int64, error) {
	rows, err := g.Exec(
		"INSERT INTO Room (name, hostUserId, visibility, status, gameId) VALUES (?, ?, ?, ?, ?) RETURNING id",
		name, hostID, visibility, status, gameID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, &DBError{Msg: "room insert returned no id"}
	}
	roomID := rowInt(rows[0], 0)

	if _, err := g.Exec(
		"INSERT INTO in_room (roomId, userId) VALUES (?, ?)", roomID, hostID); err != nil {
		return 0, err
	}
	return roomID, nil
}

// RoomIDForUser reports the room the user is a member of, if any. The
// single-room invariant means at most one row exists.
func (g *Gateway) RoomIDForUser(userID int64) (int64, bool, error) {
	rows, err := g.Exec("SELECT roomId FROM in_room WHERE userId = ?", userID)
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rowInt(rows[0], 0), true, nil
}

// LeaveRoom removes the user's membership and returns the room left.
func (g *Gateway) LeaveRoom(userID int64) (int64, bool, error) {
	rows, err := g.Exec("DELETE FROM in_room WHERE userId = ? RETURNING roomId", userID)
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rowInt(rows[0], 0), true, nil
}

// ListRoomMembers returns the members of a room with their names.
func (g *Gateway) ListRoomMembers(roomID int64) ([]models.RoomMember, error) {
	rows, err := g.Exec(
		"SELECT U.id, U.name FROM in_room AS I JOIN User AS U ON I.userId = U.id WHERE I.roomId = ?",
		roomID)
	if err != nil {
		return nil, err
	}
	members := make([]models.RoomMember, 0, len(rows))
	for _, r := range rows {
		members = append(members, models.RoomMember{UserID: rowInt(r, 0), Name: rowString(r, 1)})
	}
	return members, nil
}

// DeleteRoom removes an (already empty) room row.
func (g *Gateway) DeleteRoom(roomID int64) error {
	_, err := g.Exec("DELETE FROM Room WHERE id = ?", roomID)
	return err
}

// DeleteRoomsByHost removes every room hosted by the user, cascading the
// memberships first so no in_room row dangles.
func (g *Gateway) DeleteRoomsByHost(hostID int64) error {
	if _, err := g.Exec(
		"DELETE FROM in_room WHERE roomId IN (SELECT id FROM Room WHERE hostUserId = ?)",
		hostID); err != nil {
		return err
	}
	_, err := g.Exec("DELETE FROM Room WHERE hostUserId = ?", hostID)
	return err
}

// GetRoom returns a room by id, or nil when absent.
func (g *Gateway) GetRoom(roomID int64) (*models.Room, error) {
	return g.getRoom("SELECT id, name, hostUserId, visibility, status, gameId FROM Room WHERE id = ?", roomID)
}

// GetPublicRoom returns the room only if it exists and is public.
func (g *Gateway) GetPublicRoom(roomID int64) (*models.Room, error) {
	return g.getRoom(
		"SELECT id, name, hostUserId, visibility, status, gameId FROM Room WHERE id = ? AND visibility = 'public'",
		roomID)
}

func (g *Gateway) getRoom(query string, args ...any) (*models.Room, error) {
	rows, err := g.Exec(query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &models.Room{
		ID:         rowInt(r, 0),
		Name:       rowString(r, 1),
		HostUserID: rowInt(r, 2),
		Visibility: rowString(r, 3),
		Status:     rowString(r, 4),
		GameID:     rowInt(r, 5),
	}, nil
}

// UpdateRoomStatus moves a room between idle and playing.
func (g *Gateway) UpdateRoomStatus(roomID int64, status string) error {
	_, err := g.Exec("UPDATE Room SET status = ? WHERE id = ?", status, roomID)
	return err
}

// ListRooms returns every room joined with its game's name. Visibility
// filtering is the caller's concern.
func (g *Gateway) ListRooms() ([]models.RoomListing, error) {
	rows, err := g.Exec(
		"SELECT R.id, R.name, R.hostUserId, R.visibility, R.status, R.gameId, G.name " +
			"FROM Room R JOIN Game G ON R.gameId = G.id")
	if err != nil {
		return nil, err
	}
	listings := make([]models.RoomListing, 0, len(rows))
	for _, r := range rows {
		listings = append(listings, models.RoomListing{
			RoomID:     rowInt(r, 0),
			Name:       rowString(r, 1),
			HostID:     rowInt(r, 2),
			Visibility: rowString(r, 3),
			Status:     rowString(r, 4),
			GameID:     rowInt(r, 5),
			GameName:   rowString(r, 6),
		})
	}
	return listings, nil
}

// AddUserToRoom inserts a membership row.
func (g *Gateway) AddUserToRoom(roomID, userID int64) error {
	_, err := g.Exec("INSERT INTO in_room (roomId, userId) VALUES (?, ?)", roomID, userID)
	return err
}
