// internal/protocol/frame.go
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Wire format: uint32 big-endian length prefix, then that many bytes of
// UTF-8 JSON. A file-carrying frame is a JSON header frame that also has
// "filename" and "filesize", followed by exactly filesize raw bytes on the
// same connection.

// ErrConnectionClosed is returned when the peer closes the socket before a
// full frame was read.
var ErrConnectionClosed = errors.New("connection closed by peer")

// ErrTimeout is returned when a read deadline expires mid-frame. Callers
// decide whether to retry or treat it as a disconnect.
var ErrTimeout = errors.New("read timed out")

// ErrMalformedJSON is returned when a complete frame does not decode.
// The connection remains usable; the caller should skip the frame.
var ErrMalformedJSON = errors.New("malformed json frame")

// Codec frames JSON messages over a stream connection. The Token, when
// non-empty, is stamped into every outbound object; receivers are free to
// validate or ignore it.
type Codec struct {
	Token string
}

// SendJSON writes obj as a single length-prefixed frame.
func (c *Codec) SendJSON(conn net.Conn, obj map[string]any) error {
	if c.Token != "" {
		obj["token"] = c.Token
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data)))
	copy(buf[4:], data)
	if _, err := conn.Write(buf); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// RecvJSON reads one frame. A zero timeout blocks indefinitely.
func (c *Codec) RecvJSON(conn net.Conn, timeout time.Duration) (map[string]any, error) {
	if err := setDeadline(conn, timeout); err != nil {
		return nil, err
	}

	var prefix [4]byte
	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, classifyReadErr(err)
	}
	length := binary.BigEndian.Uint32(prefix[:])

	data := make([]byte, length)
	if _, err := io.ReadFull(conn, data); err != nil {
		return nil, classifyReadErr(err)
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, ErrMalformedJSON
	}
	return obj, nil
}

// SendFile sends a file-carrying frame: the header obj is augmented with
// filename and filesize, then the raw bytes are streamed from path.
func (c *Codec) SendFile(conn net.Conn, path string, obj map[string]any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	obj["filename"] = filepath.Base(path)
	obj["filesize"] = info.Size()
	if err := c.SendJSON(conn, obj); err != nil {
		return err
	}
	if _, err := io.Copy(conn, f); err != nil {
		return fmt.Errorf("streaming %s: %w", path, err)
	}
	return nil
}

// RecvFile reads a JSON header and, if it carries filename and filesize,
// streams the file body into saveDir. It returns the header and the saved
// path ("" for plain frames). A partial file is removed on failure.
func (c *Codec) RecvFile(conn net.Conn, saveDir string, timeout time.Duration) (map[string]any, string, error) {
	meta, err := c.RecvJSON(conn, timeout)
	if err != nil {
		return nil, "", err
	}

	size, okSize := asInt64(meta["filesize"])
	name, okName := meta["filename"].(string)
	if !okSize || !okName {
		return meta, "", nil
	}

	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("creating save dir: %w", err)
	}
	path := filepath.Join(saveDir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("creating %s: %w", path, err)
	}

	if err := setDeadline(conn, timeout); err != nil {
		f.Close()
		os.Remove(path)
		return nil, "", err
	}
	_, err = io.CopyN(f, conn, size)
	f.Close()
	if err != nil {
		os.Remove(path)
		return nil, "", classifyReadErr(err)
	}
	return meta, path, nil
}

func setDeadline(conn net.Conn, timeout time.Duration) error {
	if timeout > 0 {
		return conn.SetReadDeadline(time.Now().Add(timeout))
	}
	return conn.SetReadDeadline(time.Time{})
}

func classifyReadErr(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("reading frame: %w", err)
}

// asInt64 converts the numeric shapes a decoded JSON value may take.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
