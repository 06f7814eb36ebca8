// internal/gateway/requests.go
package gateway

import (
	"github.com/gamehall/gamehall/internal/models"
)

// InsertJoinRequest records a join request addressed to the room's host and
// returns its id.
func (g *Gateway) InsertJoinRequest(roomID, fromID, hostID int64) (int64, error) {
	rows, err := g.Exec(
		"INSERT INTO request_join_list (roomId, fromId, toId) VALUES (?, ?, ?) RETURNING id",
		roomID, fromID, hostID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, &DBError{Msg: "request insert returned no id"}
	}
	return rowInt(rows[0], 0), nil
}

// GetJoinRequestForHost returns the request only if it is addressed to
// hostID. Host-only responding is enforced by this query filter.
func (g *Gateway) GetJoinRequestForHost(requestID, hostID int64) (*models.JoinRequest, error) {
	rows, err := g.Exec(
		"SELECT id, roomId, fromId, toId FROM request_join_list WHERE id = ? AND toId = ?",
		requestID, hostID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &models.JoinRequest{
		ID:     rowInt(r, 0),
		RoomID: rowInt(r, 1),
		FromID: rowInt(r, 2),
		ToID:   rowInt(r, 3),
	}, nil
}

// RemoveRequestByID deletes a single join request.
func (g *Gateway) RemoveRequestByID(requestID int64) error {
	_, err := g.Exec("DELETE FROM request_join_list WHERE id = ?", requestID)
	return err
}

// RemoveRequestsFrom deletes every join request the user sent.
func (g *Gateway) RemoveRequestsFrom(userID int64) error {
	_, err := g.Exec("DELETE FROM request_join_list WHERE fromId = ?", userID)
	return err
}

// RemoveRequestsTo deletes every join request addressed to the user.
func (g *Gateway) RemoveRequestsTo(userID int64) error {
	_, err := g.Exec("DELETE FROM request_join_list WHERE toId = ?", userID)
	return err
}

// ListRequestsForHost returns pending requests where the user is the host.
func (g *Gateway) ListRequestsForHost(hostID int64) ([]models.RequestListing, error) {
	rows, err := g.Exec(
		"SELECT R.roomId, U.id, U.name, R.id "+
			"FROM request_join_list AS R JOIN User AS U ON R.fromId = U.id "+
			"WHERE R.toId = ?",
		hostID)
	if err != nil {
		return nil, err
	}
	listings := make([]models.RequestListing, 0, len(rows))
	for _, r := range rows {
		listings = append(listings, models.RequestListing{
			RoomID:    rowInt(r, 0),
			FromID:    rowInt(r, 1),
			FromName:  rowString(r, 2),
			RequestID: rowInt(r, 3),
		})
	}
	return listings, nil
}
