// internal/lobby/handlers_request.go
package lobby

import (
	"github.com/gamehall/gamehall/internal/dispatch"
)

func (s *Server) handleRequest(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	roomID, ok := req.Int("room_id")
	if !ok {
		sess.ReplyError("request", "Missing 'room_id'")
		return dispatch.Result{}, nil
	}

	room, err := sess.DB.GetPublicRoom(roomID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if room == nil {
		sess.ReplyError("request", "Room not found or not public")
		return dispatch.Result{}, nil
	}

	me, err := sess.DB.FindUserByID(sess.UserID)
	if err != nil {
		return dispatch.Result{}, err
	}

	requestID, err := sess.DB.InsertJoinRequest(roomID, sess.UserID, room.HostUserID)
	if err != nil {
		return dispatch.Result{}, err
	}

	sess.ReplyOK("request", nil)
	s.registry.SendAsync(room.HostUserID, map[string]any{
		"op":         "receive_request",
		"roomId":     roomID,
		"from_id":    sess.UserID,
		"fromName":   me.Name,
		"request_id": requestID,
	})
	return dispatch.Result{}, nil
}

func (s *Server) handleRespondRequest(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	requestID, ok := req.Int("request_id")
	if !ok {
		sess.ReplyError("respond_request", "Missing 'request_id'")
		return dispatch.Result{}, nil
	}
	response := req.String("response")

	// The host-only rule rides on the query filter: a non-host simply
	// finds no matching request.
	jr, err := sess.DB.GetJoinRequestForHost(requestID, sess.UserID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if jr == nil {
		sess.ReplyError("respond_request", "Request not found")
		return dispatch.Result{}, nil
	}

	switch response {
	case "accept":
		// Admission cancels the requester's other pending requests.
		if err := sess.DB.RemoveRequestsFrom(jr.FromID); err != nil {
			return dispatch.Result{}, err
		}
		if err := sess.DB.AddUserToRoom(jr.RoomID, jr.FromID); err != nil {
			return dispatch.Result{}, err
		}
		sess.ReplyOK("respond_request", nil)
		s.registry.SendAsync(jr.FromID, map[string]any{
			"op":     "request_accepted",
			"roomId": jr.RoomID,
		})
	case "decline":
		if err := sess.DB.RemoveRequestByID(requestID); err != nil {
			return dispatch.Result{}, err
		}
		sess.ReplyOK("respond_request", nil)
		s.registry.SendAsync(jr.FromID, map[string]any{
			"op":     "request_declined",
			"roomId": jr.RoomID,
		})
	default:
		sess.ReplyError("respond_request", "Invalid response")
	}
	return dispatch.Result{}, nil
}

func (s *Server) handleListRequest(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	requests, err := sess.DB.ListRequestsForHost(sess.UserID)
	if err != nil {
		return dispatch.Result{}, err
	}
	out := []map[string]any{}
	for _, r := range requests {
		out = append(out, map[string]any{
			"roomId":     r.RoomID,
			"from_id":    r.FromID,
			"fromName":   r.FromName,
			"request_id": r.RequestID,
		})
	}
	sess.ReplyOK("list_request", map[string]any{"requests": out})
	return dispatch.Result{}, nil
}
