// internal/dbservice/service_test.go
package dbservice

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamehall/gamehall/internal/protocol"
)

func newTestService(t *testing.T) (*Service, *protocol.Codec) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	codec := &protocol.Codec{}
	svc, err := New(log, codec, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, codec
}

// startTestService also serves the framed protocol on a loopback port.
func startTestService(t *testing.T) (addr string, codec *protocol.Codec) {
	t.Helper()
	svc, codec := newTestService(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.Serve(ctx, ln)
	return ln.Addr().String(), codec
}

func TestMigrationsCreateSchema(t *testing.T) {
	svc, _ := newTestService(t)

	rows, err := svc.Execute(
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name", nil)
	require.NoError(t, err)

	var names []string
	for _, row := range rows {
		names = append(names, row[0].(string))
	}
	joined := strings.Join(names, ",")
	for _, table := range []string{"User", "Game", "GameVersion", "Room", "in_room", "invite_list", "request_join_list", "comment"} {
		assert.Contains(t, joined, table)
	}
}

func TestExecuteInsertReturningAndSelect(t *testing.T) {
	svc, _ := newTestService(t)

	rows, err := svc.Execute(
		"INSERT INTO User (name, passwordHash, status, role) VALUES (?, ?, 'offline', 'player') RETURNING id",
		[]any{"alice", "H"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0][0].(int64)
	assert.Equal(t, int64(1), id)

	rows, err = svc.Execute("SELECT name, role FROM User WHERE id = ?", []any{id})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0][0])
	assert.Equal(t, "player", rows[0][1])
}

func TestExecuteScoreCheckConstraint(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Execute(
		"INSERT INTO comment (gameId, userId, content, score) VALUES (1, 1, 'x', 6)", nil)
	assert.Error(t, err, "score above 5 must violate the CHECK constraint")
}

func TestServeWireProtocol(t *testing.T) {
	addr, codec := startTestService(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, codec.SendJSON(conn, map[string]any{
		"sql":    "INSERT INTO User (name, passwordHash, status, role) VALUES (?, ?, 'offline', 'player') RETURNING id",
		"params": []any{"bob", "H"},
	}))
	reply, err := codec.RecvJSON(conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply["status"])
	data := reply["data"].([]any)
	require.Len(t, data, 1)

	// A broken statement comes back as a status=error reply, not a
	// dropped connection.
	require.NoError(t, codec.SendJSON(conn, map[string]any{
		"sql": "SELECT * FROM no_such_table",
	}))
	reply, err = codec.RecvJSON(conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "error", reply["status"])
	assert.NotEmpty(t, reply["error"])

	// The connection survives for the next request.
	require.NoError(t, codec.SendJSON(conn, map[string]any{
		"sql": "SELECT COUNT(*) FROM User",
	}))
	reply, err = codec.RecvJSON(conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply["status"])
}

func TestAdminShell(t *testing.T) {
	svc, _ := newTestService(t)

	stopped := false
	input := strings.NewReader("\nSELECT COUNT(*) FROM User\nexit\n")
	svc.AdminShell(input, func() { stopped = true })
	assert.True(t, stopped, "exit must invoke stop")
}
