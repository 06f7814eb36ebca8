// internal/lobby/handlers_invite.go
package lobby

import (
	"github.com/gamehall/gamehall/internal/dispatch"
)

func (s *Server) handleInviteUser(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	inviteeID, ok := req.Int("invitee_id")
	if !ok {
		sess.ReplyError("invite_user", "Missing 'invitee_id'")
		return dispatch.Result{}, nil
	}

	roomID, inRoom, err := sess.DB.RoomIDForUser(sess.UserID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if !inRoom {
		sess.ReplyError("invite_user", "User is not in any room")
		return dispatch.Result{}, nil
	}

	invitee, err := sess.DB.FindUserByID(inviteeID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if invitee == nil {
		sess.ReplyError("invite_user", "Invitee user not found")
		return dispatch.Result{}, nil
	}

	me, err := sess.DB.FindUserByID(sess.UserID)
	if err != nil {
		return dispatch.Result{}, err
	}

	inviteID, err := sess.DB.AddInvite(roomID, sess.UserID, inviteeID)
	if err != nil {
		return dispatch.Result{}, err
	}

	// The invite is durable before the notification is enqueued; if the
	// invitee is offline the frame is simply dropped.
	sess.ReplyOK("invite_user", nil)
	s.registry.SendAsync(inviteeID, map[string]any{
		"op":        "receive_invite",
		"roomId":    roomID,
		"from_id":   sess.UserID,
		"invite_id": inviteID,
		"fromName":  me.Name,
	})
	return dispatch.Result{}, nil
}

func (s *Server) handleRespondInvite(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	inviteID, ok := req.Int("invite_id")
	if !ok {
		sess.ReplyError("respond_invite", "Missing 'invite_id'")
		return dispatch.Result{}, nil
	}
	response := req.String("response")

	invite, err := sess.DB.GetInvite(inviteID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if invite == nil {
		sess.ReplyError("respond_invite", "Invite not found")
		return dispatch.Result{}, nil
	}
	if invite.ToID != sess.UserID {
		sess.ReplyError("respond_invite", "Invalid invite")
		return dispatch.Result{}, nil
	}

	switch response {
	case "accept":
		// Joining a room implicitly declines every other pending invite
		// involving the accepter, in either direction.
		if err := sess.DB.RemoveInvitesTo(sess.UserID); err != nil {
			return dispatch.Result{}, err
		}
		if err := sess.DB.RemoveInvitesFrom(sess.UserID); err != nil {
			return dispatch.Result{}, err
		}
		if err := sess.DB.AddUserToRoom(invite.RoomID, sess.UserID); err != nil {
			return dispatch.Result{}, err
		}
		sess.ReplyOK("respond_invite", map[string]any{"room_id": invite.RoomID})
		s.registry.SendAsync(invite.FromID, map[string]any{
			"op":      "invite_accepted",
			"roomId":  invite.RoomID,
			"from_id": sess.UserID,
		})
	case "decline":
		if err := sess.DB.RemoveInviteByID(inviteID); err != nil {
			return dispatch.Result{}, err
		}
		sess.ReplyOK("respond_invite", nil)
		s.registry.SendAsync(invite.FromID, map[string]any{
			"op":      "invite_declined",
			"roomId":  invite.RoomID,
			"from_id": sess.UserID,
		})
	default:
		sess.ReplyError("respond_invite", "Invalid response")
	}
	return dispatch.Result{}, nil
}

func (s *Server) handleListInvite(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	invites, err := sess.DB.ListInvitesFor(sess.UserID)
	if err != nil {
		return dispatch.Result{}, err
	}
	out := []map[string]any{}
	for _, inv := range invites {
		out = append(out, map[string]any{
			"roomId":    inv.RoomID,
			"from_id":   inv.FromID,
			"fromName":  inv.FromName,
			"invite_id": inv.InviteID,
			"roomName":  inv.RoomName,
			"gameId":    inv.GameID,
			"gameName":  inv.GameName,
		})
	}
	sess.ReplyOK("list_invite", map[string]any{"invites": out})
	return dispatch.Result{}, nil
}
