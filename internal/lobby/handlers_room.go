// internal/lobby/handlers_room.go
package lobby

import (
	"github.com/gamehall/gamehall/internal/dispatch"
)

func (s *Server) handleCreateRoom(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	name := req.String("name")
	visibility := req.String("visibility")
	gameID, ok := req.Int("gameId")
	if name == "" || !ok {
		sess.ReplyError("create_room", "Missing 'name' or 'gameId'")
		return dispatch.Result{}, nil
	}
	if visibility != "private" {
		visibility = "public"
	}

	_, inRoom, err := sess.DB.RoomIDForUser(sess.UserID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if inRoom {
		sess.ReplyError("create_room", "Already in room")
		return dispatch.Result{}, nil
	}

	roomID, err := sess.DB.CreateRoom(name, sess.UserID, visibility, "idle", gameID)
	if err != nil {
		return dispatch.Result{}, err
	}
	s.log.Infof("user %d created room %d (%s, %s)", sess.UserID, roomID, name, visibility)
	sess.ReplyOK("create_room", map[string]any{"room_id": roomID})
	return dispatch.Result{}, nil
}

func (s *Server) handleLeaveRoom(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	roomID, left, err := sess.DB.LeaveRoom(sess.UserID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if !left {
		sess.ReplyError("leave_room", "User is not in any room")
		return dispatch.Result{}, nil
	}

	members, err := sess.DB.ListRoomMembers(roomID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if len(members) == 0 {
		if err := sess.DB.DeleteRoom(roomID); err != nil {
			return dispatch.Result{}, err
		}
		s.log.Infof("room %d deleted after last member left", roomID)
	}
	sess.ReplyOK("leave_room", map[string]any{"message": "Left room"})
	return dispatch.Result{}, nil
}
