// internal/gateway/comments.go
package gateway

import (
	"github.com/gamehall/gamehall/internal/models"
)

// InsertComment appends a review for a game. The score range is also
// CHECK-constrained in the schema.
func (g *Gateway) InsertComment(gameID, userID int64, content string, score int64) error {
	_, err := g.Exec(
		"INSERT INTO comment (gameId, userId, content, score) VALUES (?, ?, ?, ?)",
		gameID, userID, content, score)
	return err
}

// CommentsForGame returns a game's comments, newest first, with usernames
// resolved.
func (g *Gateway) CommentsForGame(gameID int64) ([]models.Comment, error) {
	rows, err := g.Exec(
		"SELECT C.id, U.name, C.content, C.score, C.timestamp "+
			"FROM comment C JOIN User U ON C.userId = U.id "+
			"WHERE C.gameId = ? ORDER BY C.timestamp DESC",
		gameID)
	if err != nil {
		return nil, err
	}
	comments := make([]models.Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, models.Comment{
			ID:        rowInt(r, 0),
			UserName:  rowString(r, 1),
			Content:   rowString(r, 2),
			Score:     rowInt(r, 3),
			Timestamp: rowString(r, 4),
		})
	}
	return comments, nil
}

// AverageScore computes the mean score of a game's comments. Zero with no
// comments.
func (g *Gateway) AverageScore(gameID int64) (float64, error) {
	rows, err := g.Exec("SELECT AVG(score) FROM comment WHERE gameId = ?", gameID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 || rows[0][0] == nil {
		return 0, nil
	}
	return rowFloat(rows[0], 0), nil
}
