// internal/gateway/invites.go
package gateway

import (
	"github.com/gamehall/gamehall/internal/models"
)

// AddInvite records a directional invitation and returns its id.
func (g *Gateway) AddInvite(roomID, fromID, toID int64) (int64, error) {
	rows, err := g.Exec(
		"INSERT INTO invite_list (roomId, fromId, toId) VALUES (?, ?, ?) RETURNING id",
		roomID, fromID, toID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, &DBError{Msg: "invite insert returned no id"}
	}
	return rowInt(rows[0], 0), nil
}

// GetInvite returns an invite by id, or nil when absent.
func (g *Gateway) GetInvite(inviteID int64) (*models.Invite, error) {
	rows, err := g.Exec("SELECT id, roomId, fromId, toId FROM invite_list WHERE id = ?", inviteID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &models.Invite{
		ID:     rowInt(r, 0),
		RoomID: rowInt(r, 1),
		FromID: rowInt(r, 2),
		ToID:   rowInt(r, 3),
	}, nil
}

// RemoveInviteByID deletes a single invite.
func (g *Gateway) RemoveInviteByID(inviteID int64) error {
	_, err := g.Exec("DELETE FROM invite_list WHERE id = ?", inviteID)
	return err
}

// RemoveInvitesTo deletes every invite addressed to the user.
func (g *Gateway) RemoveInvitesTo(userID int64) error {
	_, err := g.Exec("DELETE FROM invite_list WHERE toId = ?", userID)
	return err
}

// RemoveInvitesFrom deletes every invite the user sent.
func (g *Gateway) RemoveInvitesFrom(userID int64) error {
	_, err := g.Exec("DELETE FROM invite_list WHERE fromId = ?", userID)
	return err
}

// ListInvitesFor returns invites addressed to the user with room and game
// metadata resolved for display.
func (g *Gateway) ListInvitesFor(userID int64) ([]models.InviteListing, error) {
	rows, err := g.Exec(
		"SELECT I.roomId, I.fromId, U.name, I.id, R.name, R.gameId, G.name "+
			"FROM invite_list AS I "+
			"JOIN User AS U ON I.fromId = U.id "+
			"JOIN Room AS R ON I.roomId = R.id "+
			"JOIN Game AS G ON R.gameId = G.id "+
			"WHERE I.toId = ?",
		userID)
	if err != nil {
		return nil, err
	}
	listings := make([]models.InviteListing, 0, len(rows))
	for _, r := range rows {
		listings = append(listings, models.InviteListing{
			RoomID:   rowInt(r, 0),
			FromID:   rowInt(r, 1),
			FromName: rowString(r, 2),
			InviteID: rowInt(r, 3),
			RoomName: rowString(r, 4),
			GameID:   rowInt(r, 5),
			GameName: rowString(r, 6),
		})
	}
	return listings, nil
}
