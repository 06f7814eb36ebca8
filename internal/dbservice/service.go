// internal/dbservice/service.go
package dbservice

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/gamehall/gamehall/internal/dbservice/migrations"
	"github.com/gamehall/gamehall/internal/protocol"
)

// requestTimeout bounds each framed read on a client connection; expiry
// just means the client is idle, so the handler keeps waiting.
const requestTimeout = 30 * time.Second

// Service executes SQL over the framed TCP protocol against a sqlite file.
// Requests are {sql, params}; replies are {status:"ok",data} where data is
// a list of row tuples, or {status:"error",error}.
type Service struct {
	log   *logrus.Logger
	codec *protocol.Codec
	db    *sql.DB

	mu sync.Mutex
	ln net.Listener
}

// New opens (creating if needed) the sqlite database at dbPath and applies
// the embedded goose migrations.
func New(log *logrus.Logger, codec *protocol.Codec, dbPath string) (*Service, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Service{log: log, codec: codec, db: db}, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close releases the sqlite handle.
func (s *Service) Close() error {
	return s.db.Close()
}

// Addr returns the listen address once Run has bound it.
func (s *Service) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Service) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return s.Serve(ctx, ln)
}

// Serve accepts clients on a prepared listener. Cancelling ctx closes the
// listener, which aborts the accept loop.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Infof("database service listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		s.log.Infof("db client connected: %s", conn.RemoteAddr())
		go s.handleConn(ctx, conn)
	}
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for ctx.Err() == nil {
		req, err := s.codec.RecvJSON(conn, requestTimeout)
		switch {
		case errors.Is(err, protocol.ErrTimeout):
			continue
		case errors.Is(err, protocol.ErrMalformedJSON):
			s.log.Warnf("db client %s sent malformed frame", conn.RemoteAddr())
			continue
		case errors.Is(err, protocol.ErrConnectionClosed):
			s.log.Infof("db client disconnected: %s", conn.RemoteAddr())
			return
		case err != nil:
			s.log.Warnf("db client %s read error: %v", conn.RemoteAddr(), err)
			return
		}

		query, _ := req["sql"].(string)
		params, _ := req["params"].([]any)
		s.log.Debugf("executing sql: %s params: %v", query, params)

		rows, execErr := s.Execute(query, params)
		var reply map[string]any
		if execErr != nil {
			reply = map[string]any{"status": "error", "error": execErr.Error()}
		} else {
			reply = map[string]any{"status": "ok", "data": rows}
		}
		if err := s.codec.SendJSON(conn, reply); err != nil {
			s.log.Warnf("db client %s write error: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

// Execute runs one statement and collects any produced rows. Using Query
// for every statement lets SELECT, RETURNING and plain DML share a path;
// non-returning statements just yield an empty row set.
func (s *Service) Execute(query string, params []any) ([][]any, error) {
	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := [][]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			switch t := v.(type) {
			case []byte:
				values[i] = string(t)
			case time.Time:
				values[i] = t.Format("2006-01-02 15:04:05")
			}
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

// AdminShell reads ad-hoc commands from r until EOF or "exit". An empty
// line does nothing; any other line is executed as SQL and the result
// printed through the logger. "exit" invokes stop.
func (s *Service) AdminShell(r io.Reader, stop func()) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch line {
		case "":
			continue
		case "exit":
			s.log.Info("admin requested shutdown")
			stop()
			return
		default:
			rows, err := s.Execute(line, nil)
			if err != nil {
				s.log.Errorf("admin sql error: %v", err)
				continue
			}
			s.log.Infof("admin sql result: %v", rows)
		}
	}
}
