// internal/session/registry.go
package session

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gamehall/gamehall/internal/protocol"
)

// A job is one outbound frame for a user: either a plain JSON payload or a
// file-carrying frame streamed from path. cleanup, when set, runs after the
// frame has been written (or abandoned).
type job struct {
	payload map[string]any
	path    string
	cleanup func()
}

// entry tracks one bound user: the socket, the FIFO outbound queue, and
// whether the dedicated writer goroutine is alive.
type entry struct {
	conn    net.Conn
	queue   []job
	writing bool
	closed  bool
}

// Registry maps online user ids to their connections and serializes all
// outbound traffic per user. A user's own replies and asynchronous
// notifications share one socket; interleaving bytes from two writers
// would corrupt the framing, so at most one frame per user is in flight
// and frames drain in the order the registry observed them.
type Registry struct {
	mu    sync.Mutex
	cond  *sync.Cond
	codec *protocol.Codec
	log   *logrus.Logger
	users map[int64]*entry
}

// NewRegistry builds an empty registry using codec for outbound frames.
func NewRegistry(codec *protocol.Codec, log *logrus.Logger) *Registry {
	r := &Registry{
		codec: codec,
		log:   log,
		users: make(map[int64]*entry),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Bind associates a user id with a connection. Called after successful
// login, register, or return-from-game. A stale entry for the same id is
// replaced.
func (r *Registry) Bind(userID int64, conn net.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = &entry{conn: conn}
}

// SendAsync enqueues a JSON frame for the user. It never blocks on the
// network; frames for an unbound user are dropped.
func (r *Registry) SendAsync(userID int64, payload map[string]any) {
	r.enqueue(userID, job{payload: payload})
}

// SendFileAsync enqueues a file-carrying frame. cleanup (may be nil) runs
// once the frame has been written or the entry torn down, letting callers
// reclaim staging files.
func (r *Registry) SendFileAsync(userID int64, path string, payload map[string]any, cleanup func()) {
	r.enqueue(userID, job{payload: payload, path: path, cleanup: cleanup})
}

func (r *Registry) enqueue(userID int64, j job) {
	r.mu.Lock()
	e, ok := r.users[userID]
	if !ok || e.closed {
		r.mu.Unlock()
		if j.cleanup != nil {
			j.cleanup()
		}
		return
	}
	e.queue = append(e.queue, j)
	if !e.writing {
		e.writing = true
		go r.drain(userID, e)
	}
	r.mu.Unlock()
}

// drain is the per-user writer. It pops jobs in FIFO order and writes them
// without holding the registry mutex, so a slow socket never stalls other
// users' sends.
func (r *Registry) drain(userID int64, e *entry) {
	for {
		r.mu.Lock()
		if len(e.queue) == 0 {
			e.writing = false
			r.cond.Broadcast()
			r.mu.Unlock()
			return
		}
		j := e.queue[0]
		e.queue = e.queue[1:]
		conn := e.conn
		r.mu.Unlock()

		var err error
		if j.path != "" {
			err = r.codec.SendFile(conn, j.path, j.payload)
		} else {
			err = r.codec.SendJSON(conn, j.payload)
		}
		if err != nil {
			r.log.Warnf("send to user %d failed: %v", userID, err)
		}
		if j.cleanup != nil {
			j.cleanup()
		}
	}
}

// Unbind removes a user's entry. It refuses new frames immediately and
// blocks until the writer has drained everything already enqueued, so no
// write is in flight on the socket when it returns.
func (r *Registry) Unbind(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[userID]
	if !ok {
		return
	}
	e.closed = true
	for e.writing {
		r.cond.Wait()
	}
	delete(r.users, userID)
}

// Online reports whether a user currently has a bound connection.
func (r *Registry) Online(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[userID]
	return ok && !e.closed
}
