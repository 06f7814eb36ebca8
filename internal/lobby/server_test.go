// internal/lobby/server_test.go
package lobby

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamehall/gamehall/internal/config"
	"github.com/gamehall/gamehall/internal/dbservice"
	"github.com/gamehall/gamehall/internal/gateway"
	"github.com/gamehall/gamehall/internal/protocol"
)

// testEnv is a full loopback deployment: database service plus lobby
// service, each on an ephemeral port.
type testEnv struct {
	t     *testing.T
	cfg   config.Config
	codec *protocol.Codec
	addr  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	codec := &protocol.Codec{}

	svc, err := dbservice.New(log, codec, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	dbLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.Serve(ctx, dbLn)

	host, portStr, err := net.SplitHostPort(dbLn.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := config.Config{
		DBHost:     host,
		DBPort:     port,
		ServerIP:   "127.0.0.1",
		TempDir:    t.TempDir(),
		StorageDir: t.TempDir(),
	}

	srv := New(cfg, log)
	lobbyLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ctx, lobbyLn)

	return &testEnv{t: t, cfg: cfg, codec: codec, addr: lobbyLn.Addr().String()}
}

// db dials a gateway straight at the database service for test setup and
// verification.
func (e *testEnv) db() *gateway.Gateway {
	g, err := gateway.Dial(e.cfg.DBAddr(), e.codec)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { g.Close() })
	return g
}

// client is one player connection speaking the framed protocol.
type client struct {
	t     *testing.T
	conn  net.Conn
	codec *protocol.Codec
}

func (e *testEnv) dial() *client {
	conn, err := net.Dial("tcp", e.addr)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { conn.Close() })
	return &client{t: e.t, conn: conn, codec: e.codec}
}

func (c *client) send(msg map[string]any) {
	c.t.Helper()
	require.NoError(c.t, c.codec.SendJSON(c.conn, msg))
}

func (c *client) recv() map[string]any {
	c.t.Helper()
	msg, err := c.codec.RecvJSON(c.conn, 5*time.Second)
	require.NoError(c.t, err)
	return msg
}

func (c *client) rpc(msg map[string]any) map[string]any {
	c.t.Helper()
	c.send(msg)
	return c.recv()
}

// register creates and binds a player, returning the assigned id.
func (c *client) register(name string) int64 {
	c.t.Helper()
	reply := c.rpc(map[string]any{"op": "register", "name": name, "passwordHash": "H-" + name})
	require.Equal(c.t, "ok", reply["status"], "register failed: %v", reply)
	return int64(reply["id"].(float64))
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	c1 := env.dial()
	reply := c1.rpc(map[string]any{"op": "register", "name": "alice", "passwordHash": "H"})
	assert.Equal(t, "ok", reply["status"])
	assert.Equal(t, "register", reply["op"])
	assert.Equal(t, float64(1), reply["id"])

	// Same name again, from a fresh connection.
	c2 := env.dial()
	reply = c2.rpc(map[string]any{"op": "register", "name": "alice", "passwordHash": "H"})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "User already exists", reply["error"])

	reply = c2.rpc(map[string]any{"op": "login", "name": "alice", "passwordHash": "H"})
	assert.Equal(t, "ok", reply["status"])
	assert.Equal(t, float64(1), reply["id"])

	c3 := env.dial()
	reply = c3.rpc(map[string]any{"op": "login", "name": "alice", "passwordHash": "wrong"})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Username Or Password incorrect", reply["error"])
}

func TestLoginRequiredGate(t *testing.T) {
	env := newTestEnv(t)

	c := env.dial()
	reply := c.rpc(map[string]any{"op": "list_rooms"})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Login required", reply["error"])
}

func TestInviteRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	db := env.db()

	alice := env.dial()
	aliceID := alice.register("alice")
	bob := env.dial()
	bobID := bob.register("bob")

	gameID, err := db.InsertGame("pong", "classic", aliceID, "1.0")
	require.NoError(t, err)

	reply := alice.rpc(map[string]any{"op": "create_room", "name": "r", "visibility": "public", "gameId": gameID})
	require.Equal(t, "ok", reply["status"])
	roomID := reply["room_id"].(float64)

	reply = alice.rpc(map[string]any{"op": "invite_user", "invitee_id": bobID})
	assert.Equal(t, "ok", reply["status"])

	// Bob's idle connection receives the notification unsolicited.
	notif := bob.recv()
	assert.Equal(t, "receive_invite", notif["op"])
	assert.Equal(t, roomID, notif["roomId"])
	assert.Equal(t, float64(aliceID), notif["from_id"])
	assert.Equal(t, "alice", notif["fromName"])
	inviteID := notif["invite_id"].(float64)

	reply = bob.rpc(map[string]any{"op": "respond_invite", "invite_id": inviteID, "response": "accept"})
	assert.Equal(t, "ok", reply["status"])
	assert.Equal(t, roomID, reply["room_id"])

	notif = alice.recv()
	assert.Equal(t, "invite_accepted", notif["op"])
	assert.Equal(t, roomID, notif["roomId"])
	assert.Equal(t, float64(bobID), notif["from_id"])

	// The single-room invariant: Bob now cannot open his own room.
	reply = bob.rpc(map[string]any{"op": "create_room", "name": "r2", "visibility": "public", "gameId": gameID})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Already in room", reply["error"])

	members, err := db.ListRoomMembers(int64(roomID))
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestInviteUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	db := env.db()

	alice := env.dial()
	alice.register("alice")

	reply := alice.rpc(map[string]any{"op": "create_room", "name": "r", "visibility": "public", "gameId": 1})
	require.Equal(t, "ok", reply["status"])

	reply = alice.rpc(map[string]any{"op": "invite_user", "invitee_id": 4242})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Invitee user not found", reply["error"])

	// No dangling invite row may be left behind.
	rows, err := db.Exec("SELECT id FROM invite_list")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRespondInviteByNonAddressee(t *testing.T) {
	env := newTestEnv(t)

	alice := env.dial()
	alice.register("alice")
	bob := env.dial()
	bobID := bob.register("bob")
	carol := env.dial()
	carol.register("carol")

	reply := alice.rpc(map[string]any{"op": "create_room", "name": "r", "visibility": "public", "gameId": 1})
	require.Equal(t, "ok", reply["status"])
	reply = alice.rpc(map[string]any{"op": "invite_user", "invitee_id": bobID})
	require.Equal(t, "ok", reply["status"])

	notif := bob.recv()
	inviteID := notif["invite_id"].(float64)

	reply = carol.rpc(map[string]any{"op": "respond_invite", "invite_id": inviteID, "response": "accept"})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Invalid invite", reply["error"])

	reply = carol.rpc(map[string]any{"op": "respond_invite", "invite_id": float64(9999), "response": "accept"})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Invite not found", reply["error"])
}

func TestJoinRequestFlow(t *testing.T) {
	env := newTestEnv(t)

	alice := env.dial()
	alice.register("alice")
	bob := env.dial()
	bob.register("bob")

	reply := alice.rpc(map[string]any{"op": "create_room", "name": "open", "visibility": "public", "gameId": 1})
	require.Equal(t, "ok", reply["status"])
	roomID := reply["room_id"].(float64)

	reply = bob.rpc(map[string]any{"op": "request", "room_id": roomID})
	assert.Equal(t, "ok", reply["status"])

	notif := alice.recv()
	assert.Equal(t, "receive_request", notif["op"])
	assert.Equal(t, roomID, notif["roomId"])
	assert.Equal(t, "bob", notif["fromName"])
	requestID := notif["request_id"].(float64)

	// Only the host may resolve it; Bob answering his own request finds
	// nothing because of the host filter.
	reply = bob.rpc(map[string]any{"op": "respond_request", "request_id": requestID, "response": "accept"})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Request not found", reply["error"])

	reply = alice.rpc(map[string]any{"op": "respond_request", "request_id": requestID, "response": "accept"})
	assert.Equal(t, "ok", reply["status"])

	notif = bob.recv()
	assert.Equal(t, "request_accepted", notif["op"])
	assert.Equal(t, roomID, notif["roomId"])
}

func TestRequestPrivateRoomRejected(t *testing.T) {
	env := newTestEnv(t)

	alice := env.dial()
	alice.register("alice")
	bob := env.dial()
	bob.register("bob")

	reply := alice.rpc(map[string]any{"op": "create_room", "name": "secret", "visibility": "private", "gameId": 1})
	require.Equal(t, "ok", reply["status"])
	roomID := reply["room_id"].(float64)

	reply = bob.rpc(map[string]any{"op": "request", "room_id": roomID})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Room not found or not public", reply["error"])

	// And it never shows in the public listing.
	reply = bob.rpc(map[string]any{"op": "list_rooms"})
	require.Equal(t, "ok", reply["status"])
	assert.Empty(t, reply["rooms"])
}

func TestStartWithOneMember(t *testing.T) {
	env := newTestEnv(t)
	db := env.db()

	alice := env.dial()
	alice.register("alice")

	reply := alice.rpc(map[string]any{"op": "create_room", "name": "solo", "visibility": "public", "gameId": 1})
	require.Equal(t, "ok", reply["status"])
	roomID := int64(reply["room_id"].(float64))

	reply = alice.rpc(map[string]any{"op": "start"})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Not enough players", reply["error"])

	room, err := db.GetRoom(roomID)
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, "idle", room.Status, "a failed start must not touch room state")
}

func TestCommentScoreBoundary(t *testing.T) {
	env := newTestEnv(t)
	db := env.db()

	alice := env.dial()
	aliceID := alice.register("alice")
	gameID, err := db.InsertGame("pong", "classic", aliceID, "1.0")
	require.NoError(t, err)

	reply := alice.rpc(map[string]any{"op": "add_comment", "game_id": gameID, "content": "x", "score": 6})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Score must be an integer between 1 and 5", reply["error"])

	reply = alice.rpc(map[string]any{"op": "add_comment", "game_id": gameID, "content": "x", "score": 4.5})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Score must be an integer between 1 and 5", reply["error"])

	reply = alice.rpc(map[string]any{"op": "add_comment", "game_id": gameID, "content": "great", "score": 5})
	assert.Equal(t, "ok", reply["status"])

	reply = alice.rpc(map[string]any{"op": "show_comment", "game_id": gameID})
	require.Equal(t, "ok", reply["status"])
	assert.Equal(t, float64(5), reply["average_score"])
	comments := reply["comments"].([]any)
	require.Len(t, comments, 1)
	first := comments[0].(map[string]any)
	assert.Equal(t, "great", first["content"])
	assert.Equal(t, float64(5), first["score"])
}

func TestLeaveRoomDeletesEmptyRoom(t *testing.T) {
	env := newTestEnv(t)
	db := env.db()

	alice := env.dial()
	alice.register("alice")

	reply := alice.rpc(map[string]any{"op": "leave_room"})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "User is not in any room", reply["error"])

	reply = alice.rpc(map[string]any{"op": "create_room", "name": "r", "visibility": "public", "gameId": 1})
	require.Equal(t, "ok", reply["status"])
	roomID := int64(reply["room_id"].(float64))

	reply = alice.rpc(map[string]any{"op": "leave_room"})
	assert.Equal(t, "ok", reply["status"])

	room, err := db.GetRoom(roomID)
	require.NoError(t, err)
	assert.Nil(t, room, "the last leave must delete the room")
}

func TestLogoutCascade(t *testing.T) {
	env := newTestEnv(t)
	db := env.db()

	alice := env.dial()
	aliceID := alice.register("alice")
	bob := env.dial()
	bobID := bob.register("bob")

	reply := alice.rpc(map[string]any{"op": "create_room", "name": "r", "visibility": "public", "gameId": 1})
	require.Equal(t, "ok", reply["status"])
	reply = alice.rpc(map[string]any{"op": "invite_user", "invitee_id": bobID})
	require.Equal(t, "ok", reply["status"])
	bob.recv() // receive_invite

	reply = alice.rpc(map[string]any{"op": "logout"})
	assert.Equal(t, "ok", reply["status"])

	require.Eventually(t, func() bool {
		user, err := db.FindUserByID(aliceID)
		return err == nil && user != nil && user.Status == "offline"
	}, 5*time.Second, 50*time.Millisecond, "logout must end with status offline")

	_, inRoom, err := db.RoomIDForUser(aliceID)
	require.NoError(t, err)
	assert.False(t, inRoom)

	rooms, err := db.ListRooms()
	require.NoError(t, err)
	assert.Empty(t, rooms, "hosted rooms are deleted on logout")

	invites, err := db.ListInvitesFor(bobID)
	require.NoError(t, err)
	assert.Empty(t, invites, "pending invites from the leaver are deleted")
}

func TestDownloadGame(t *testing.T) {
	env := newTestEnv(t)
	db := env.db()

	alice := env.dial()
	aliceID := alice.register("alice")

	// Install a version on disk the way the developer service would.
	_, err := db.InsertGame("pong", "classic", aliceID, "1.0")
	require.NoError(t, err)
	versionDir := filepath.Join(env.cfg.StorageDir, fmt.Sprintf("%d", aliceID), "pong", "1.0")
	require.NoError(t, os.MkdirAll(filepath.Join(versionDir, "client"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(versionDir, "server"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(versionDir, "config.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(versionDir, "client", "client_main.py"), []byte("c"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(versionDir, "server", "server_main.py"), []byte("s"), 0o644))

	alice.send(map[string]any{"op": "download_game", "game_name": "pong"})
	saveDir := t.TempDir()
	meta, saved, err := env.codec.RecvFile(alice.conn, saveDir, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", meta["status"])
	assert.Equal(t, "download_game", meta["op"])
	assert.Equal(t, "pong.zip", meta["filename"])
	assert.NotEmpty(t, saved)

	reply := alice.rpc(map[string]any{"op": "download_game", "game_name": "nope"})
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "Game not found", reply["error"])
}

func TestMatchStartEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	db := env.db()

	alice := env.dial()
	aliceID := alice.register("alice")
	bob := env.dial()
	bobID := bob.register("bob")

	gameID, err := db.InsertGame("pong", "classic", aliceID, "1.0")
	require.NoError(t, err)
	require.NoError(t, db.InsertGameVersion(gameID, "1.0", "sh server.sh"))

	versionDir := filepath.Join(env.cfg.StorageDir, fmt.Sprintf("%d", aliceID), "pong", "1.0")
	require.NoError(t, os.MkdirAll(versionDir, 0o755))
	script := "#!/bin/sh\nread line\necho \"listening on 45001\"\nsleep 0.2\nexit 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(versionDir, "server.sh"), []byte(script), 0o755))

	reply := alice.rpc(map[string]any{"op": "create_room", "name": "r", "visibility": "public", "gameId": gameID})
	require.Equal(t, "ok", reply["status"])
	roomID := int64(reply["room_id"].(float64))
	reply = alice.rpc(map[string]any{"op": "invite_user", "invitee_id": bobID})
	require.Equal(t, "ok", reply["status"])
	notif := bob.recv()
	reply = bob.rpc(map[string]any{"op": "respond_invite", "invite_id": notif["invite_id"], "response": "accept"})
	require.Equal(t, "ok", reply["status"])
	alice.recv() // invite_accepted

	alice.send(map[string]any{"op": "start"})

	// Every member gets the endpoint broadcast.
	aliceNotif := alice.recv()
	assert.Equal(t, "start", aliceNotif["op"])
	assert.Equal(t, "ok", aliceNotif["status"])
	assert.Equal(t, "127.0.0.1", aliceNotif["game_server_ip"])
	assert.Equal(t, float64(45001), aliceNotif["game_server_port"])
	assert.Equal(t, "pong", aliceNotif["game_name"])

	bobNotif := bob.recv()
	assert.Equal(t, "start", bobNotif["op"])
	assert.Equal(t, float64(45001), bobNotif["game_server_port"])

	// The room flips back to idle once the process exits.
	require.Eventually(t, func() bool {
		room, err := db.GetRoom(roomID)
		return err == nil && room != nil && room.Status == "idle"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestAdminConsole(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	srv := New(config.Config{}, log)

	stopped := false
	input := strings.NewReader("\nbogus-command\nexit\n")
	srv.AdminConsole(input, func() { stopped = true })
	assert.True(t, stopped, "exit must invoke stop")
}

func TestOpCoverage(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	srv := New(config.Config{}, log)

	want := []string{
		"register", "login", "back", "logout",
		"list_rooms", "list_online_users", "list_games",
		"show_game_data", "show_comment", "add_comment",
		"create_room", "leave_room",
		"invite_user", "respond_invite", "list_invite",
		"request", "respond_request", "list_request",
		"download_game", "start",
	}
	assert.ElementsMatch(t, want, srv.Ops())
}
