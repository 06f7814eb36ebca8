// internal/lobby/handlers_game.go
package lobby

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gamehall/gamehall/internal/dispatch"
	"github.com/gamehall/gamehall/internal/gamepkg"
	"github.com/gamehall/gamehall/internal/gateway"
	"github.com/gamehall/gamehall/internal/match"
)

// versionDir is where an installed version of a game lives on disk.
func (s *Server) versionDir(ownerID int64, gameName, version string) string {
	return filepath.Join(s.cfg.StorageDir, fmt.Sprintf("%d", ownerID), gameName, version)
}

// handleDownloadGame stages the client-side subset of the latest version,
// zips it, and streams it back as a file-carrying frame. The server tree
// never leaves the host.
func (s *Server) handleDownloadGame(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	gameName := req.String("game_name")
	if gameName == "" {
		sess.ReplyError("download_game", "Missing 'game_name'")
		return dispatch.Result{}, nil
	}

	game, err := sess.DB.GetGameByName(gameName)
	if err != nil {
		return dispatch.Result{}, err
	}
	if game == nil {
		sess.ReplyError("download_game", "Game not found")
		return dispatch.Result{}, nil
	}

	staging, err := os.MkdirTemp(s.cfg.TempDir, "download-*")
	if err != nil {
		return dispatch.Result{}, err
	}
	cleanup := func() { os.RemoveAll(staging) }

	src := s.versionDir(game.OwnerID, game.Name, game.LatestVersion)
	packDir := filepath.Join(staging, game.Name)
	if err := gamepkg.StageDownload(src, packDir); err != nil {
		cleanup()
		sess.ReplyError("download_game", err.Error())
		return dispatch.Result{}, nil
	}
	zipPath := filepath.Join(staging, game.Name+".zip")
	if err := gamepkg.ZipDir(packDir, zipPath); err != nil {
		cleanup()
		return dispatch.Result{}, err
	}

	// The registry streams the zip on the user's socket after anything
	// already queued, then removes the staging dir.
	s.registry.SendFileAsync(sess.UserID, zipPath, map[string]any{
		"status":    "ok",
		"op":        "download_game",
		"game_name": game.Name,
		"version":   game.LatestVersion,
	}, cleanup)
	return dispatch.Result{}, nil
}

// handleStart launches a game server for the caller's room and broadcasts
// the endpoint to every member. On success the worker detaches: the client
// is expected to drop into the game and come back via "back".
func (s *Server) handleStart(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	roomID, inRoom, err := sess.DB.RoomIDForUser(sess.UserID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if !inRoom {
		sess.ReplyError("start", "User is not in any room")
		return dispatch.Result{}, nil
	}

	members, err := sess.DB.ListRoomMembers(roomID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if len(members) < 2 {
		sess.ReplyError("start", "Not enough players")
		return dispatch.Result{}, nil
	}

	room, err := sess.DB.GetRoom(roomID)
	if err != nil {
		return dispatch.Result{}, err
	}
	game, err := sess.DB.GetGameByID(room.GameID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if game == nil {
		sess.ReplyError("start", "Game not found")
		return dispatch.Result{}, nil
	}
	version, err := sess.DB.GetVersion(game.ID, game.LatestVersion)
	if err != nil {
		return dispatch.Result{}, err
	}
	if version == nil {
		sess.ReplyError("start", "Game version not found")
		return dispatch.Result{}, nil
	}

	input := match.Input{IPAddress: s.cfg.ServerIP, Users: len(members)}
	for _, m := range members {
		input.UserIDs = append(input.UserIDs, m.UserID)
	}

	dir := s.versionDir(game.OwnerID, game.Name, game.LatestVersion)
	proc, err := match.Launch(s.log, dir, version.Command, input)
	if err != nil {
		s.log.Errorf("launching game server for room %d: %v", roomID, err)
		sess.ReplyError("start", fmt.Sprintf("Failed to start game server: %v", err))
		return dispatch.Result{}, nil
	}

	if err := sess.DB.UpdateRoomStatus(roomID, "playing"); err != nil {
		proc.Kill()
		// Still drain pipes and reap the child; Kill alone would leave
		// a zombie until the lobby exits.
		go proc.Monitor(nil)
		return dispatch.Result{}, err
	}

	for _, m := range members {
		s.registry.SendAsync(m.UserID, map[string]any{
			"status":           "ok",
			"op":               "start",
			"game_server_ip":   s.cfg.ServerIP,
			"game_server_port": proc.Port,
			"game_name":        game.Name,
		})
	}
	s.log.Infof("room %d started %s v%s on port %d", roomID, game.Name, game.LatestVersion, proc.Port)

	// The monitor outlives this worker (and its gateway), so it dials its
	// own DB connection when the match ends.
	go proc.Monitor(func(exitErr error) {
		db, err := gateway.Dial(s.cfg.DBAddr(), s.codec)
		if err != nil {
			s.log.Errorf("match monitor: db gateway dial failed: %v", err)
			return
		}
		defer db.Close()
		if err := db.UpdateRoomStatus(roomID, "idle"); err != nil {
			s.log.Errorf("match monitor: resetting room %d: %v", roomID, err)
			return
		}
		s.log.Infof("room %d back to idle", roomID)
	})

	return dispatch.Result{Detach: true}, nil
}
