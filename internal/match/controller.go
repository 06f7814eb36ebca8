// internal/match/controller.go
//
// Package match launches and supervises per-room game server processes.
// The process contract: one JSON line on stdin describing the match, the
// bound port as the last whitespace token of the first stdout line, then
// free-form output (score lines included) until exit.
package match

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// portAnnounceTimeout bounds how long a freshly launched process may take
// to print its listening port.
const portAnnounceTimeout = 15 * time.Second

// Input is the stdin handshake written to a game server process. Users is
// the expected player count; game servers accept connections until that
// many clients have joined.
type Input struct {
	IPAddress string  `json:"ip_address"`
	Users     int     `json:"users"`
	UserIDs   []int64 `json:"userIDs"`
}

// Match is a running game server process.
type Match struct {
	// ID tags every log line of this match so concurrent matches stay
	// distinguishable.
	ID   uuid.UUID
	Port int

	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.ReadCloser
	log    *logrus.Entry
}

// Launch starts command inside dir, feeds it the handshake, and waits for
// the port announcement. The returned Match is running; the caller must
// invoke Monitor to reap it.
func Launch(log *logrus.Logger, dir, command string, input Input) (*Match, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty launch command")
	}
	cmd := exec.Command(fields[0], fields[1:]...)
	cmd.Dir = dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting game server: %w", err)
	}
	matchID := uuid.New()
	entry := log.WithFields(logrus.Fields{"match_id": matchID, "pid": cmd.Process.Pid})
	entry.Infof("game server started: %s", command)

	// Handshake: one JSON line, then close stdin so line-oriented readers
	// see EOF after it.
	payload, err := json.Marshal(input)
	if err != nil {
		cmd.Process.Kill()
		return nil, fmt.Errorf("encoding match input: %w", err)
	}
	if _, err := stdin.Write(append(payload, '\n')); err != nil {
		cmd.Process.Kill()
		return nil, fmt.Errorf("writing match input: %w", err)
	}
	stdin.Close()

	reader := bufio.NewReader(stdout)
	port, err := readPort(reader)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}
	entry.Infof("game server listening on port %d", port)

	return &Match{
		ID:     matchID,
		Port:   port,
		cmd:    cmd,
		stdout: reader,
		stderr: stderr,
		log:    entry,
	}, nil
}

// readPort takes the trailing whitespace token of the first stdout line as
// the port number. A guard goroutine kills the wait if the process never
// announces.
func readPort(r *bufio.Reader) (int, error) {
	type lineResult struct {
		line string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- lineResult{line: line, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil && res.line == "" {
			return 0, fmt.Errorf("game server exited before announcing a port: %v", res.err)
		}
		fields := strings.Fields(res.line)
		if len(fields) == 0 {
			return 0, fmt.Errorf("game server announced an empty line")
		}
		port, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || port <= 0 || port > 65535 {
			return 0, fmt.Errorf("game server announced an invalid port: %q", res.line)
		}
		return port, nil
	case <-time.After(portAnnounceTimeout):
		return 0, fmt.Errorf("game server did not announce a port within %s", portAnnounceTimeout)
	}
}

// scoreLine is the optional per-user result a game server may print while
// running: {"userId": N, "score": N}.
type scoreLine struct {
	UserID int64 `json:"userId"`
	Score  int64 `json:"score"`
}

// Monitor drains the process's pipes and waits for exit, then invokes
// onExit. It blocks; callers run it on its own goroutine. Score lines on
// stdout are logged, everything else is passed through at debug level.
func (m *Match) Monitor(onExit func(exitErr error)) {
	var g errgroup.Group
	g.Go(func() error {
		scanner := bufio.NewScanner(m.stdout)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var sl scoreLine
			if err := json.Unmarshal([]byte(line), &sl); err == nil && sl.UserID != 0 {
				m.log.Infof("match result: user %d scored %d", sl.UserID, sl.Score)
				continue
			}
			m.log.Debugf("game server stdout: %s", line)
		}
		return nil
	})
	g.Go(func() error {
		scanner := bufio.NewScanner(m.stderr)
		for scanner.Scan() {
			m.log.Debugf("game server stderr: %s", scanner.Text())
		}
		return nil
	})

	g.Wait()
	err := m.cmd.Wait()
	if err != nil {
		m.log.Warnf("game server exited: %v", err)
	} else {
		m.log.Info("game server exited cleanly")
	}
	if onExit != nil {
		onExit(err)
	}
}

// Kill forcibly terminates the process. Monitor still observes the exit.
func (m *Match) Kill() error {
	return m.cmd.Process.Kill()
}
