package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/exec"

	"github.com/coder/websocket"
	"github.com/creack/pty"
	"github.com/tunnelpanel/tunnelpanel/internal/logutil"
	"github.com/tunnelpanel/tunnelpanel/internal/middleware"
)

// ConsoleShell is the program spawned for web console sessions. Overridable
// for tests.
var ConsoleShell = "bash"

type consoleResizeMsg struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// ConsoleWS handles GET /api/console: an interactive shell over WebSocket.
// Raw messages are terminal input; a JSON message {"type":"resize"} adjusts
// the PTY size. Authentication happens in the middleware chain before the
// upgrade.
func ConsoleWS(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("console: accept websocket: %v", err)
		return
	}
	defer conn.CloseNow()

	log.Printf("console: session opened for %s", logutil.SanitizeForLog(user.Username))

	cmd := exec.Command(ConsoleShell)
	cmd.Env = append(os.Environ(), "TERM=xterm-color")
	if home, err := os.UserHomeDir(); err == nil {
		cmd.Dir = home
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: 80, Rows: 30})
	if err != nil {
		log.Printf("console: start pty: %v", err)
		conn.Close(websocket.StatusInternalError, "Failed to start shell")
		return
	}
	defer func() {
		ptmx.Close()
		cmd.Process.Kill()
		cmd.Wait()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// PTY output -> client.
	go func() {
		defer cancel()
		buf := make([]byte, 32*1024)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				if werr := conn.Write(ctx, websocket.MessageBinary, buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	// Client -> PTY, with JSON resize frames handled inline.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}

		var msg consoleResizeMsg
		if json.Unmarshal(data, &msg) == nil && msg.Type == "resize" && msg.Cols > 0 && msg.Rows > 0 {
			if err := pty.Setsize(ptmx, &pty.Winsize{Cols: msg.Cols, Rows: msg.Rows}); err != nil {
				log.Printf("console: resize: %v", err)
			}
			continue
		}

		if _, err := ptmx.Write(data); err != nil {
			break
		}
	}

	log.Printf("console: session closed for %s", logutil.SanitizeForLog(user.Username))
	conn.Close(websocket.StatusNormalClosure, "")
}
