// internal/gateway/gateway.go
package gateway

import (
	"fmt"
	"net"
	"time"

	"github.com/gamehall/gamehall/internal/protocol"
)

// DefaultTimeout bounds each request round-trip. It is tight because the
// database service is expected to be local.
const DefaultTimeout = time.Second

// DBError carries the database service's own error text, distinguishing it
// from transport and protocol failures.
type DBError struct {
	Msg string
}

func (e *DBError) Error() string { return e.Msg }

// Gateway is a single persistent connection to the database service. It is
// NOT reentrant: each connection worker owns its own Gateway, so the
// database service sees a pool sized by the number of active clients.
type Gateway struct {
	conn    net.Conn
	codec   *protocol.Codec
	timeout time.Duration
}

// Dial connects to the database service at addr.
func Dial(addr string, codec *protocol.Codec) (*Gateway, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing database service %s: %w", addr, err)
	}
	return &Gateway{conn: conn, codec: codec, timeout: DefaultTimeout}, nil
}

// Close releases the underlying connection.
func (g *Gateway) Close() error {
	return g.conn.Close()
}

// Exec sends one {sql, params} request and returns the reply's row tuples.
// Database-level failures come back as *DBError; anything else is a
// transport or protocol violation.
func (g *Gateway) Exec(query string, params ...any) ([][]any, error) {
	if params == nil {
		params = []any{}
	}
	req := map[string]any{"sql": query, "params": params}
	if err := g.codec.SendJSON(g.conn, req); err != nil {
		return nil, fmt.Errorf("sending db request: %w", err)
	}

	reply, err := g.codec.RecvJSON(g.conn, g.timeout)
	if err != nil {
		return nil, fmt.Errorf("reading db reply: %w", err)
	}

	switch reply["status"] {
	case "ok":
		return decodeRows(reply["data"])
	case "error":
		return nil, &DBError{Msg: fmt.Sprint(reply["error"])}
	default:
		return nil, fmt.Errorf("db protocol violation: unexpected reply %v", reply)
	}
}

func decodeRows(data any) ([][]any, error) {
	if data == nil {
		return nil, nil
	}
	list, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("db protocol violation: data is %T, not a list", data)
	}
	rows := make([][]any, 0, len(list))
	for _, r := range list {
		tuple, ok := r.([]any)
		if !ok {
			return nil, fmt.Errorf("db protocol violation: row is %T, not a tuple", r)
		}
		rows = append(rows, tuple)
	}
	return rows, nil
}

// rowInt reads column i of a row tuple as an integer. JSON decoding yields
// float64 for numbers; sqlite may also hand back integer-typed strings.
func rowInt(row []any, i int) int64 {
	if i >= len(row) {
		return 0
	}
	switch v := row[i].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func rowString(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	switch v := row[i].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func rowFloat(row []any, i int) float64 {
	if i >= len(row) {
		return 0
	}
	if v, ok := row[i].(float64); ok {
		return v
	}
	return 0
}
