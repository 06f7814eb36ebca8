// internal/lobby/handlers_browse.go
package lobby

import (
	"math"

	"github.com/gamehall/gamehall/internal/dispatch"
)

func (s *Server) handleListRooms(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	rooms, err := sess.DB.ListRooms()
	if err != nil {
		return dispatch.Result{}, err
	}
	out := []map[string]any{}
	for _, r := range rooms {
		if r.Visibility != "public" {
			continue
		}
		out = append(out, map[string]any{
			"roomId":   r.RoomID,
			"name":     r.Name,
			"hostId":   r.HostID,
			"status":   r.Status,
			"gameId":   r.GameID,
			"gameName": r.GameName,
		})
	}
	sess.ReplyOK("list_rooms", map[string]any{"rooms": out})
	return dispatch.Result{}, nil
}

func (s *Server) handleListOnlineUsers(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	users, err := sess.DB.ListOnlinePlayers()
	if err != nil {
		return dispatch.Result{}, err
	}
	out := []map[string]any{}
	for _, u := range users {
		out = append(out, map[string]any{"id": u.ID, "name": u.Name})
	}
	sess.ReplyOK("list_online_users", map[string]any{"users": out})
	return dispatch.Result{}, nil
}

func (s *Server) handleListGames(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	games, err := sess.DB.ListGames()
	if err != nil {
		return dispatch.Result{}, err
	}
	out := []map[string]any{}
	for _, g := range games {
		out = append(out, map[string]any{"game_id": g.ID, "name": g.Name})
	}
	sess.ReplyOK("list_games", map[string]any{"games": out})
	return dispatch.Result{}, nil
}

func (s *Server) handleShowGameData(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	gameID, ok := req.Int("game_id")
	if !ok {
		sess.ReplyError("show_game_data", "Missing 'game_id'")
		return dispatch.Result{}, nil
	}
	game, err := sess.DB.GetGameByID(gameID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if game == nil {
		sess.ReplyError("show_game_data", "Game not found")
		return dispatch.Result{}, nil
	}
	sess.ReplyOK("show_game_data", map[string]any{
		"id":             game.ID,
		"name":           game.Name,
		"description":    game.Description,
		"owner_id":       game.OwnerID,
		"latest_version": game.LatestVersion,
	})
	return dispatch.Result{}, nil
}

func (s *Server) handleShowComment(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	gameID, ok := req.Int("game_id")
	if !ok {
		sess.ReplyError("show_comment", "Missing 'game_id'")
		return dispatch.Result{}, nil
	}
	comments, err := sess.DB.CommentsForGame(gameID)
	if err != nil {
		return dispatch.Result{}, err
	}
	avg, err := sess.DB.AverageScore(gameID)
	if err != nil {
		return dispatch.Result{}, err
	}
	out := []map[string]any{}
	for _, c := range comments {
		out = append(out, map[string]any{
			"user":      c.UserName,
			"content":   c.Content,
			"score":     c.Score,
			"timestamp": c.Timestamp,
		})
	}
	sess.ReplyOK("show_comment", map[string]any{
		"comments":      out,
		"average_score": avg,
	})
	return dispatch.Result{}, nil
}

func (s *Server) handleAddComment(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	gameID, ok := req.Int("game_id")
	if !ok {
		sess.ReplyError("add_comment", "Missing 'game_id'")
		return dispatch.Result{}, nil
	}
	content := req.String("content")

	// score must be an integral number in [1,5]; 4.5 is as invalid as 6.
	raw, present := req.Msg["score"]
	score, integral := asIntegral(raw)
	if !present || !integral || score < 1 || score > 5 {
		sess.ReplyError("add_comment", "Score must be an integer between 1 and 5")
		return dispatch.Result{}, nil
	}

	if err := sess.DB.InsertComment(gameID, sess.UserID, content, score); err != nil {
		return dispatch.Result{}, err
	}
	sess.ReplyOK("add_comment", nil)
	return dispatch.Result{}, nil
}

// asIntegral accepts a JSON number only when it has no fractional part.
func asIntegral(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
