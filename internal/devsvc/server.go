// internal/devsvc/server.go
//
// Package devsvc is the developer-facing service: accounts with role
// developer and game package upload, update, removal and listing.
package devsvc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gamehall/gamehall/internal/config"
	"github.com/gamehall/gamehall/internal/dispatch"
	"github.com/gamehall/gamehall/internal/gateway"
	"github.com/gamehall/gamehall/internal/protocol"
)

// Server accepts developer connections on its own port. Developers never
// receive asynchronous notifications, so there is no session registry;
// every reply is written directly by the worker.
type Server struct {
	cfg   config.Config
	log   *logrus.Logger
	codec *protocol.Codec
	mux   *dispatch.Mux

	mu sync.Mutex
	ln net.Listener
}

// New wires the developer server and registers its op handlers.
func New(cfg config.Config, log *logrus.Logger) *Server {
	s := &Server{
		cfg:   cfg,
		log:   log,
		codec: &protocol.Codec{Token: cfg.Token},
		mux:   dispatch.NewMux(),
	}
	m := s.mux
	m.Handle("register", false, s.handleRegister)
	m.Handle("login", false, s.handleLogin)
	m.Handle("logout", true, s.handleLogout)
	m.Handle("upload_game", true, s.handleUploadGame)
	m.Handle("update_game", true, s.handleUpdateGame)
	m.Handle("remove_game", true, s.handleRemoveGame)
	m.Handle("list_games", true, s.handleListGames)
	m.Handle("list_versions", true, s.handleListVersions)
	return s
}

// Ops exposes the registered op codes for coverage checks.
func (s *Server) Ops() []string { return s.mux.Ops() }

// Addr returns the bound listen address once Run has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run listens on the configured developer address and serves until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.DeveloperAddr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.DeveloperAddr(), err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return s.Serve(ctx, ln)
}

// Serve accepts developers on a prepared listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Infof("developer service listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		s.log.Infof("developer connected: %s", conn.RemoteAddr())
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
		Conn:  conn,
		Codec: s.codec,
		DB:    db,
		Log:   s.log,
	}
	s.mux.ServeConn(ctx, sess, s.cfg.TempDir, func(userID int64, detach bool) {
		if userID == 0 {
			return
		}
		if err := db.UpdateUserStatus(userID, "offline"); err != nil {
			s.log.Errorf("marking developer %d offline: %v", userID, err)
		}
	})
}
