// internal/devsvc/handlers.go
package devsvc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gamehall/gamehall/internal/auth"
	"github.com/gamehall/gamehall/internal/dispatch"
	"github.com/gamehall/gamehall/internal/gamepkg"
)

func (s *Server) ownerDir(ownerID int64) string {
	return filepath.Join(s.cfg.StorageDir, fmt.Sprintf("%d", ownerID))
}

func (s *Server) versionDir(ownerID int64, gameName, version string) string {
	return filepath.Join(s.ownerDir(ownerID), gameName, version)
}

func (s *Server) handleRegister(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	name := req.String("name")
	secret := req.String("passwordHash")
	if name == "" || secret == "" {
		sess.ReplyError("register", "Missing 'name' or 'passwordHash'")
		return dispatch.Result{}, nil
	}

	existing, err := sess.DB.FindUserByName(name)
	if err != nil {
		return dispatch.Result{}, err
	}
	if existing != nil {
		sess.ReplyError("register", "User already exists")
		return dispatch.Result{}, nil
	}

	encoded, err := auth.HashSecret(secret)
	if err != nil {
		return dispatch.Result{}, err
	}
	id, err := sess.DB.InsertUser(name, encoded, "developer")
	if err != nil {
		return dispatch.Result{}, err
	}
	if err := os.MkdirAll(s.ownerDir(id), 0o755); err != nil {
		return dispatch.Result{}, err
	}
	if err := sess.DB.UpdateUserStatus(id, "online"); err != nil {
		return dispatch.Result{}, err
	}

	sess.ReplyOK("register", map[string]any{"id": id})
	s.log.Infof("registered developer %q (id %d)", name, id)
	return dispatch.Result{SetUser: true, UserID: id}, nil
}

func (s *Server) handleLogin(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	name := req.String("name")
	secret := req.String("passwordHash")
	if name == "" || secret == "" {
		sess.ReplyError("login", "Missing 'name' or 'passwordHash'")
		return dispatch.Result{}, nil
	}

	user, err := sess.DB.FindUserByName(name)
	if err != nil {
		return dispatch.Result{}, err
	}
	if user == nil || user.Role != "developer" {
		sess.ReplyError("login", "Username Or Password incorrect")
		return dispatch.Result{}, nil
	}
	ok, err := auth.VerifySecret(secret, user.PasswordHash)
	if err != nil || !ok {
		sess.ReplyError("login", "Username Or Password incorrect")
		return dispatch.Result{}, nil
	}
	if err := sess.DB.UpdateUserStatus(user.ID, "online"); err != nil {
		return dispatch.Result{}, err
	}

	sess.ReplyOK("login", map[string]any{"id": user.ID})
	s.log.Infof("developer %q logged in (id %d)", name, user.ID)
	return dispatch.Result{SetUser: true, UserID: user.ID}, nil
}

// handleLogout keeps the connection: a developer client logs out and
// immediately shows the login prompt again on the same socket.
func (s *Server) handleLogout(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	if err := sess.DB.UpdateUserStatus(sess.UserID, "offline"); err != nil {
		return dispatch.Result{}, err
	}
	sess.ReplyOK("logout", nil)
	s.log.Infof("developer %d logged out", sess.UserID)
	return dispatch.Result{SetUser: true, UserID: 0}, nil
}

// installPackage extracts and validates an uploaded zip, returning the
// parsed config and the package root inside a caller-owned temp dir.
func (s *Server) installPackage(zipPath string) (cfg *gamepkg.Config, root, workDir string, err error) {
	workDir, err = os.MkdirTemp(s.cfg.TempDir, "upload-*")
	if err != nil {
		return nil, "", "", err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(workDir)
		}
	}()

	if err = gamepkg.Unzip(zipPath, workDir); err != nil {
		return nil, "", "", err
	}
	root, err = gamepkg.DetectRoot(workDir)
	if err != nil {
		return nil, "", "", err
	}
	cfg, err = gamepkg.LoadConfig(root)
	if err != nil {
		return nil, "", "", err
	}
	if err = gamepkg.CheckLayout(root); err != nil {
		return nil, "", "", err
	}
	return cfg, root, workDir, nil
}

func (s *Server) handleUploadGame(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	if req.FilePath == "" {
		sess.ReplyError("upload_game", "No game package received")
		return dispatch.Result{}, nil
	}
	defer os.Remove(req.FilePath)

	cfg, root, workDir, err := s.installPackage(req.FilePath)
	if err != nil {
		sess.ReplyError("upload_game", err.Error())
		return dispatch.Result{}, nil
	}
	defer os.RemoveAll(workDir)

	existing, err := sess.DB.GetGameByName(cfg.Name)
	if err != nil {
		return dispatch.Result{}, err
	}
	if existing != nil {
		sess.ReplyError("upload_game", fmt.Sprintf("Game '%s' already exists", cfg.Name))
		return dispatch.Result{}, nil
	}

	dest := s.versionDir(sess.UserID, cfg.Name, cfg.Version)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return dispatch.Result{}, err
	}
	if err := os.Rename(root, dest); err != nil {
		return dispatch.Result{}, err
	}

	gameID, err := sess.DB.InsertGame(cfg.Name, cfg.Description, sess.UserID, cfg.Version)
	if err != nil {
		os.RemoveAll(dest)
		return dispatch.Result{}, err
	}
	if err := sess.DB.InsertGameVersion(gameID, cfg.Version, cfg.Command); err != nil {
		return dispatch.Result{}, err
	}

	s.log.Infof("developer %d uploaded %s v%s (game %d)", sess.UserID, cfg.Name, cfg.Version, gameID)
	sess.ReplyOK("upload_game", map[string]any{
		"game_id": gameID,
		"name":    cfg.Name,
		"version": cfg.Version,
	})
	return dispatch.Result{}, nil
}

func (s *Server) handleUpdateGame(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	if req.FilePath == "" {
		sess.ReplyError("update_game", "No game package received")
		return dispatch.Result{}, nil
	}
	defer os.Remove(req.FilePath)

	cfg, root, workDir, err := s.installPackage(req.FilePath)
	if err != nil {
		sess.ReplyError("update_game", err.Error())
		return dispatch.Result{}, nil
	}
	defer os.RemoveAll(workDir)

	game, err := sess.DB.GetGameByName(cfg.Name)
	if err != nil {
		return dispatch.Result{}, err
	}
	if game == nil {
		sess.ReplyError("update_game", fmt.Sprintf("Game '%s' does not exist", cfg.Name))
		return dispatch.Result{}, nil
	}
	if game.OwnerID != sess.UserID {
		sess.ReplyError("update_game", "You do not own this game")
		return dispatch.Result{}, nil
	}
	version, err := sess.DB.GetVersion(game.ID, cfg.Version)
	if err != nil {
		return dispatch.Result{}, err
	}
	if version != nil {
		sess.ReplyError("update_game", fmt.Sprintf("Version '%s' already exists", cfg.Version))
		return dispatch.Result{}, nil
	}

	dest := s.versionDir(sess.UserID, cfg.Name, cfg.Version)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return dispatch.Result{}, err
	}
	if err := os.Rename(root, dest); err != nil {
		return dispatch.Result{}, err
	}

	if err := sess.DB.InsertGameVersion(game.ID, cfg.Version, cfg.Command); err != nil {
		os.RemoveAll(dest)
		return dispatch.Result{}, err
	}
	if err := sess.DB.UpdateGameLatestVersion(game.ID, cfg.Version); err != nil {
		return dispatch.Result{}, err
	}

	s.log.Infof("developer %d updated %s to v%s", sess.UserID, cfg.Name, cfg.Version)
	sess.ReplyOK("update_game", map[string]any{
		"game_id": game.ID,
		"name":    cfg.Name,
		"version": cfg.Version,
	})
	return dispatch.Result{}, nil
}

func (s *Server) handleRemoveGame(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	gameName := req.String("game_name")
	if gameName == "" {
		sess.ReplyError("remove_game", "Missing 'game_name'")
		return dispatch.Result{}, nil
	}

	game, err := sess.DB.GetGameByName(gameName)
	if err != nil {
		return dispatch.Result{}, err
	}
	if game == nil {
		sess.ReplyError("remove_game", fmt.Sprintf("Game '%s' does not exist", gameName))
		return dispatch.Result{}, nil
	}
	if game.OwnerID != sess.UserID {
		sess.ReplyError("remove_game", "You do not own this game")
		return dispatch.Result{}, nil
	}

	version := req.String("version")
	if version == "" {
		// Whole game: every version row, the Game row, the directory.
		if err := sess.DB.DeleteVersionsByGame(game.ID); err != nil {
			return dispatch.Result{}, err
		}
		if err := sess.DB.DeleteGame(game.ID); err != nil {
			return dispatch.Result{}, err
		}
		os.RemoveAll(filepath.Join(s.ownerDir(sess.UserID), game.Name))
		s.log.Infof("developer %d removed game %s entirely", sess.UserID, game.Name)
		sess.ReplyOK("remove_game", map[string]any{"message": "Game removed"})
		return dispatch.Result{}, nil
	}

	target, err := sess.DB.GetVersion(game.ID, version)
	if err != nil {
		return dispatch.Result{}, err
	}
	if target == nil {
		sess.ReplyError("remove_game", fmt.Sprintf("Version '%s' does not exist", version))
		return dispatch.Result{}, nil
	}

	if err := sess.DB.DeleteVersionByID(target.ID); err != nil {
		return dispatch.Result{}, err
	}
	os.RemoveAll(s.versionDir(sess.UserID, game.Name, version))

	if game.LatestVersion == version {
		remaining, err := sess.DB.OrderedVersions(game.ID)
		if err != nil {
			return dispatch.Result{}, err
		}
		if len(remaining) == 0 {
			if err := sess.DB.DeleteGame(game.ID); err != nil {
				return dispatch.Result{}, err
			}
			os.RemoveAll(filepath.Join(s.ownerDir(sess.UserID), game.Name))
			s.log.Infof("developer %d removed the last version of %s; game deleted", sess.UserID, game.Name)
			sess.ReplyOK("remove_game", map[string]any{"message": "Game removed"})
			return dispatch.Result{}, nil
		}
		// Promote the most recent remaining version.
		if err := sess.DB.UpdateGameLatestVersion(game.ID, remaining[0].Version); err != nil {
			return dispatch.Result{}, err
		}
		s.log.Infof("game %s latest version promoted to %s", game.Name, remaining[0].Version)
	}

	sess.ReplyOK("remove_game", map[string]any{"message": "Version removed"})
	return dispatch.Result{}, nil
}

func (s *Server) handleListGames(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	games, err := sess.DB.GamesByOwner(sess.UserID)
	if err != nil {
		return dispatch.Result{}, err
	}
	out := []map[string]any{}
	for _, g := range games {
		out = append(out, map[string]any{
			"game_id":        g.ID,
			"name":           g.Name,
			"description":    g.Description,
			"latest_version": g.LatestVersion,
		})
	}
	sess.ReplyOK("list_games", map[string]any{"games": out})
	return dispatch.Result{}, nil
}

func (s *Server) handleListVersions(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	gameName := req.String("game_name")
	if gameName == "" {
		sess.ReplyError("list_versions", "Missing 'game_name'")
		return dispatch.Result{}, nil
	}
	game, err := sess.DB.GetGameByName(gameName)
	if err != nil {
		return dispatch.Result{}, err
	}
	if game == nil {
		sess.ReplyError("list_versions", fmt.Sprintf("Game '%s' does not exist", gameName))
		return dispatch.Result{}, nil
	}
	versions, err := sess.DB.VersionNumbers(game.ID)
	if err != nil {
		return dispatch.Result{}, err
	}
	sess.ReplyOK("list_versions", map[string]any{"versions": versions})
	return dispatch.Result{}, nil
}
