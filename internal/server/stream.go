package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	lerrors "github.com/matzehuels/lineage/pkg/errors"
	"github.com/matzehuels/lineage/pkg/graph"
	"github.com/matzehuels/lineage/pkg/session"
)

const (
	defaultStreamFPS = 30
	maxStreamFPS     = 60

	// simRate is the number of simulation ticks per second of wall time.
	simRate = 60

	writeWait = 5 * time.Second
)

// Stream message types sent to the client.
const (
	StreamView  = "view"
	StreamError = "error"
)

// StreamCommand is a client request on the stream. Op is one of trace,
// clear, era, zoom or resize.
type StreamCommand struct {
	Op     string  `json:"op"`
	ID     string  `json:"id,omitempty"`
	Era    int     `json:"era,omitempty"`
	Zoom   float64 `json:"zoom,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
}

// StreamMessage is one server message on the stream.
type StreamMessage struct {
	Type   string         `json:"type"`
	View   *graph.View    `json:"view,omitempty"`
	Error  *ErrorResponse `json:"error,omitempty"`
	Active bool           `json:"active"`
}

// stream drives a viewer over a websocket: the simulation advances at
// simRate, views are pushed while nodes or the camera move, and client
// commands are applied as they arrive.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context())
	fps, err := intParam(r, "fps", defaultStreamFPS)
	if err != nil {
		writeError(w, err)
		return
	}
	if fps < 1 || fps > maxStreamFPS {
		writeError(w, lerrors.New(lerrors.ErrCodeInvalidInput, "fps must be in [1, %d]", maxStreamFPS))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "session", v.ID(), "error", err)
		return
	}
	defer conn.Close()
	s.logger.Debug("stream opened", "session", v.ID(), "fps", fps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replies := make(chan StreamMessage, 4)
	go s.readCommands(ctx, cancel, conn, v, replies)

	send := func(m StreamMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(m); err != nil {
			s.logger.Debug("stream write failed", "session", v.ID(), "error", err)
			return false
		}
		return true
	}

	last := v.Export()
	if !send(StreamMessage{Type: StreamView, View: &last, Active: !last.Settled}) {
		return
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	ticksPerFrame := max(1, simRate/fps)

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-replies:
			if m.View != nil {
				last = *m.View
			}
			if !send(m) {
				return
			}
		case <-ticker.C:
			active := v.Tick(ticksPerFrame)
			view := v.Export()
			if !active && !cameraMoved(last.Camera, view.Camera) && last.Settled {
				continue
			}
			last = view
			if !send(StreamMessage{Type: StreamView, View: &view, Active: active}) {
				return
			}
		}
	}
}

// readCommands applies client commands until the connection closes.
func (s *Server) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, v *session.Viewer, replies chan<- StreamMessage) {
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("stream closed", "session", v.ID(), "error", err)
			}
			return
		}

		var cmd StreamCommand
		var reply StreamMessage
		if err := json.Unmarshal(data, &cmd); err != nil {
			reply = streamError(lerrors.New(lerrors.ErrCodeInvalidFormat, "malformed command"))
		} else {
			reply = s.apply(ctx, v, cmd)
		}

		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) apply(ctx context.Context, v *session.Viewer, cmd StreamCommand) StreamMessage {
	var err error
	switch cmd.Op {
	case "trace":
		err = v.Select(ctx, cmd.ID)
	case "clear":
		v.Clear()
	case "era":
		err = v.FlyToEra(cmd.Era)
	case "zoom":
		err = v.SetZoom(cmd.Zoom)
	case "resize":
		if err = lerrors.ValidateFrameSize(cmd.Width, cmd.Height); err == nil {
			v.Resize(float64(cmd.Width), float64(cmd.Height))
		}
	default:
		err = lerrors.New(lerrors.ErrCodeInvalidInput, "unknown op %q", cmd.Op)
	}
	if err != nil {
		return streamError(err)
	}
	view := v.Export()
	return StreamMessage{Type: StreamView, View: &view, Active: !view.Settled}
}

func streamError(err error) StreamMessage {
	_, body := errorBody(err)
	return StreamMessage{Type: StreamError, Error: &body}
}

func cameraMoved(a, b *graph.Camera) bool {
	if a == nil || b == nil {
		return a != b
	}
	return *a != *b
}
