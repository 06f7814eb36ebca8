// internal/lobby/server.go
//
// Package lobby is the player-facing service: authentication, room and
// invite coordination, the game catalog, downloads, and match starts.
package lobby

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gamehall/gamehall/internal/config"
	"github.com/gamehall/gamehall/internal/dispatch"
	"github.com/gamehall/gamehall/internal/gateway"
	"github.com/gamehall/gamehall/internal/protocol"
	"github.com/gamehall/gamehall/internal/session"
)

// Server accepts player connections and serves the lobby op set. Each
// connection gets its own worker goroutine and its own DB gateway; the
// session registry is the only state shared between workers.
type Server struct {
	cfg      config.Config
	log      *logrus.Logger
	codec    *protocol.Codec
	registry *session.Registry
	mux      *dispatch.Mux

	mu sync.Mutex
	ln net.Listener
}

// New wires the lobby server and registers its op handlers.
func New(cfg config.Config, log *logrus.Logger) *Server {
	codec := &protocol.Codec{Token: cfg.Token}
	s := &Server{
		cfg:      cfg,
		log:      log,
		codec:    codec,
		registry: session.NewRegistry(codec, log),
		mux:      dispatch.NewMux(),
	}
	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	m := s.mux
	m.Handle("register", false, s.handleRegister)
	m.Handle("login", false, s.handleLogin)
	m.Handle("back", false, s.handleBack)
	m.Handle("logout", true, s.handleLogout)

	m.Handle("list_rooms", true, s.handleListRooms)
	m.Handle("list_online_users", true, s.handleListOnlineUsers)
	m.Handle("list_games", true, s.handleListGames)
	m.Handle("show_game_data", true, s.handleShowGameData)
	m.Handle("show_comment", true, s.handleShowComment)
	m.Handle("add_comment", true, s.handleAddComment)

	m.Handle("create_room", true, s.handleCreateRoom)
	m.Handle("leave_room", true, s.handleLeaveRoom)
	m.Handle("invite_user", true, s.handleInviteUser)
	m.Handle("respond_invite", true, s.handleRespondInvite)
	m.Handle("list_invite", true, s.handleListInvite)
	m.Handle("request", true, s.handleRequest)
	m.Handle("respond_request", true, s.handleRespondRequest)
	m.Handle("list_request", true, s.handleListRequest)

	m.Handle("download_game", true, s.handleDownloadGame)
	m.Handle("start", true, s.handleStart)
}

// Ops exposes the registered op codes for coverage checks.
func (s *Server) Ops() []string { return s.mux.Ops() }

// Registry exposes the session registry, mainly to the match monitor and
// tests.
func (s *Server) Registry() *session.Registry { return s.registry }

// Addr returns the bound listen address once Run has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run listens on the configured lobby address and serves until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.LobbyAddr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.LobbyAddr(), err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return s.Serve(ctx, ln)
}

// Serve accepts players on a prepared listener. Cancelling ctx closes the
// listener, which aborts the accept loop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Infof("lobby service listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		s.log.Infof("player connected: %s", conn.RemoteAddr())
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	db, err := gateway.Dial(s.cfg.DBAddr(), s.codec)
	if err != nil {
		s.log.Errorf("db gateway dial failed: %v", err)
		conn.Close()
		return
	}
	defer db.Close()

	sess := &dispatch.Session{
		Conn:     conn,
		Codec:    s.codec,
		Registry: s.registry,
		DB:       db,
		Log:      s.log,
	}
	s.mux.ServeConn(ctx, sess, s.cfg.TempDir, func(userID int64, detach bool) {
		if userID == 0 {
			return
		}
		// Unbind drains queued frames before the deferred Close tears
		// down the socket, so nothing already enqueued is lost.
		s.registry.Unbind(userID)
		if detach {
			s.log.Infof("user %d detached for a match", userID)
			return
		}
		if err := s.runCascade(db, userID); err != nil {
			s.log.Errorf("lifecycle cascade for user %d: %v", userID, err)
		}
	})
}

// AdminConsole reads operator commands from r until EOF. An empty line
// does nothing; "exit" invokes stop, which shuts the service down.
func (s *Server) AdminConsole(r io.Reader, stop func()) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		switch line := strings.TrimSpace(scanner.Text()); line {
		case "":
			continue
		case "exit":
			s.log.Info("admin requested shutdown")
			stop()
			return
		default:
			s.log.Warnf("unknown admin command %q", line)
		}
	}
}

// runCascade applies the user-lifecycle teardown after logout or a broken
// connection: leave (and maybe delete) the current room, delete hosted
// rooms, clear invites and join-requests in both directions, go offline.
func (s *Server) runCascade(db *gateway.Gateway, userID int64) error {
	roomID, inRoom, err := db.LeaveRoom(userID)
	if err != nil {
		return err
	}
	if inRoom {
		members, err := db.ListRoomMembers(roomID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			if err := db.DeleteRoom(roomID); err != nil {
				return err
			}
		}
	}
	if err := db.DeleteRoomsByHost(userID); err != nil {
		return err
	}
	if err := db.RemoveInvitesTo(userID); err != nil {
		return err
	}
	if err := db.RemoveInvitesFrom(userID); err != nil {
		return err
	}
	if err := db.RemoveRequestsFrom(userID); err != nil {
		return err
	}
	if err := db.RemoveRequestsTo(userID); err != nil {
		return err
	}
	if err := db.UpdateUserStatus(userID, "offline"); err != nil {
		return err
	}
	s.log.Infof("user %d logged out", userID)
	return nil
}
