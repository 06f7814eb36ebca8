// internal/lobby/handlers_auth.go
package lobby

import (
	"github.com/gamehall/gamehall/internal/auth"
	"github.com/gamehall/gamehall/internal/dispatch"
)

// handleRegister creates a player account. The client-sent passwordHash is
// an opaque token; only its Argon2id encoding is stored.
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
	id, err := sess.DB.InsertUser(name, encoded, "player")
	if err != nil {
		return dispatch.Result{}, err
	}
	if err := sess.DB.UpdateUserStatus(id, "online"); err != nil {
		return dispatch.Result{}, err
	}

	sess.ReplyOK("register", map[string]any{"id": id})
	s.registry.Bind(id, sess.Conn)
	s.log.Infof("registered player %q (id %d)", name, id)
	return dispatch.Result{SetUser: true, UserID: id}, nil
}

// handleLogin authenticates a player and binds the session.
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
	if user == nil || user.Role != "player" {
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
	s.registry.Bind(user.ID, sess.Conn)
	s.log.Infof("player %q logged in (id %d)", name, user.ID)
	return dispatch.Result{SetUser: true, UserID: user.ID}, nil
}

// handleBack re-binds a known user id to a fresh connection when a client
// returns from a game process without a full relogin.
func (s *Server) handleBack(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	userID, ok := req.Int("userId")
	if !ok {
		sess.ReplyError("back", "Missing 'userId'")
		return dispatch.Result{}, nil
	}
	user, err := sess.DB.FindUserByID(userID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if user == nil {
		sess.ReplyError("back", "Username Or Password incorrect")
		return dispatch.Result{}, nil
	}
	if err := sess.DB.UpdateUserStatus(user.ID, "online"); err != nil {
		return dispatch.Result{}, err
	}

	sess.ReplyOK("back", map[string]any{"id": user.ID})
	s.registry.Bind(user.ID, sess.Conn)
	s.log.Infof("player %q returned to the lobby (id %d)", user.Name, user.ID)
	return dispatch.Result{SetUser: true, UserID: user.ID}, nil
}

// handleLogout acknowledges, then lets the worker exit; the lifecycle
// cascade runs from the connection teardown path.
func (s *Server) handleLogout(sess *dispatch.Session, req *dispatch.Request) (dispatch.Result, error) {
	sess.ReplyOK("logout", nil)
	return dispatch.Result{Disconnect: true}, nil
}
