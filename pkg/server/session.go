package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chazu/compass/pkg/drawlist"
	"github.com/chazu/compass/pkg/events"
	"github.com/chazu/compass/pkg/graph"
	"github.com/chazu/compass/pkg/logging"
	"github.com/chazu/compass/pkg/metrics"
	"github.com/chazu/compass/pkg/sketch"
	"github.com/chazu/compass/pkg/snap"
	"github.com/coder/websocket"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/google/uuid"
	"go.jetify.com/typeid/v2"
)

const (
	writeWait  = 10 * time.Second
	maxMsgSize = 64 * 1024

	// SessionPrefix is the typeid prefix of session IDs.
	SessionPrefix = "sess"
)

// Session ops.
const (
	OpCreate   = "create"
	OpMove     = "move"
	OpDelete   = "delete"
	OpCursor   = "cursor"
	OpPlace    = "place"
	OpSelect   = "select"
	OpPan      = "pan"
	OpZoom     = "zoom"
	OpSnapshot = "snapshot"
)

// Reply types.
const (
	TypeWelcome  = "welcome"
	TypeSnapshot = "snapshot"
	TypeHover    = "hover"
	TypeError    = "error"
)

// Request is one client message. Coordinates are virtual for create and
// move, pixels for cursor, place, select and zoom.
type Request struct {
	Seq int64  `json:"seq,omitempty"`
	Op  string `json:"op"`

	// Kind selects the definition for create: point, free_line, line,
	// on_line or intersect.
	Kind   string       `json:"kind,omitempty"`
	Handle graph.Handle `json:"handle,omitempty"`
	A      graph.Handle `json:"a,omitempty"`
	B      graph.Handle `json:"b,omitempty"`
	Label  string       `json:"label,omitempty"`

	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	DX     float64 `json:"dx,omitempty"`
	DY     float64 `json:"dy,omitempty"`
	T      float64 `json:"t,omitempty"`
	Factor float64 `json:"factor,omitempty"`
}

// Reply is one server message.
type Reply struct {
	Type      string `json:"type"`
	Seq       int64  `json:"seq,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	Frame     uint64 `json:"frame"`

	// Handle is the object a create or place produced.
	Handle   graph.Handle    `json:"handle,omitempty"`
	Removed  []graph.Handle  `json:"removed,omitempty"`
	Objects  []sketch.Object `json:"objects,omitempty"`
	DrawList []drawlist.Item `json:"drawList,omitempty"`
	Target   *snap.Target    `json:"target,omitempty"`
	Events   []sketch.Event  `json:"events,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// session is one websocket client editing its own sketch. All sketch access
// happens on the read loop's goroutine.
type session struct {
	id       string
	clientID string
	conn     *websocket.Conn
	sk       *sketch.Sketch
	reader   *events.Reader
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sk, err := sketch.New(s.opts.Sketch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.AllowedOrigins,
	})
	if err != nil {
		logging.Logger().Error("websocket accept", "error", err)
		return
	}

	sess := &session{
		id:       typeid.MustGenerate(SessionPrefix).String(),
		clientID: uuid.New().String(),
		conn:     conn,
		sk:       sk,
		reader:   sk.Events().Register(),
	}
	metrics.SessionOpened()
	defer metrics.SessionClosed()

	sess.run(r.Context())
}

func (c *session) run(ctx context.Context) {
	defer func() {
		c.sk.Events().Unregister(c.reader)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()
	c.conn.SetReadLimit(maxMsgSize)

	log := logging.Logger().With("session", c.id, "client", c.clientID)
	log.Info("session opened")

	if err := c.send(ctx, Reply{
		Type:      TypeWelcome,
		SessionID: c.id,
		ClientID:  c.clientID,
		Frame:     c.sk.Context().Frame,
	}); err != nil {
		return
	}

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure ||
				status == websocket.StatusGoingAway {
				log.Info("session closed")
				return
			}
			log.Debug("read error", "error", err)
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			log.Warn("invalid message", "error", err)
			if err := c.send(ctx, Reply{Type: TypeError, Error: "invalid message"}); err != nil {
				return
			}
			continue
		}

		if err := c.send(ctx, c.handle(req)); err != nil {
			log.Debug("write error", "error", err)
			return
		}
	}
}

func (c *session) send(ctx context.Context, reply Reply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

// handle applies req, runs one frame and builds the reply. A rejected edit
// still runs the frame so the client sees a consistent snapshot.
func (c *session) handle(req Request) Reply {
	reply := Reply{Type: TypeSnapshot, Seq: req.Seq}
	opErr := c.apply(req, &reply)

	rep, err := c.sk.Step()
	if err != nil {
		return Reply{Type: TypeError, Seq: req.Seq, Error: err.Error(), Frame: rep.Frame}
	}
	reply.Frame = rep.Frame
	reply.Events = c.sk.Events().Read(c.reader)

	if opErr != nil {
		reply.Type = TypeError
		reply.Error = opErr.Error()
		return reply
	}

	if req.Op == OpCursor {
		reply.Type = TypeHover
		if t, ok := c.sk.Hover(); ok {
			reply.Target = &t
		}
		return reply
	}

	reply.Objects = c.sk.Objects()
	items, err := drawlist.Build(c.sk.Store(), c.sk.Viewport())
	if err != nil {
		reply.Type = TypeError
		reply.Error = err.Error()
		return reply
	}
	reply.DrawList = items
	return reply
}

func (c *session) apply(req Request, reply *Reply) error {
	sk := c.sk
	switch req.Op {
	case OpCreate:
		def, err := definitionFor(req)
		if err != nil {
			return err
		}
		h, err := sk.Create(def, graph.Style{Label: req.Label})
		reply.Handle = h
		return err

	case OpMove:
		return sk.MovePoint(req.Handle, v2.Vec{X: req.X, Y: req.Y})

	case OpDelete:
		removed, err := sk.Delete(req.Handle)
		if err == nil {
			reply.Removed = append([]graph.Handle{req.Handle}, removed...)
		}
		return err

	case OpCursor:
		sk.SetCursor(v2.Vec{X: req.X, Y: req.Y})
		return nil

	case OpPlace:
		h, t, err := sk.PlacePoint(v2.Vec{X: req.X, Y: req.Y})
		reply.Handle = h
		reply.Target = &t
		return err

	case OpSelect:
		if h, ok := sk.SelectAt(v2.Vec{X: req.X, Y: req.Y}); ok {
			reply.Handle = h
		}
		return nil

	case OpPan:
		sk.Pan(v2.Vec{X: req.DX, Y: req.DY})
		return nil

	case OpZoom:
		if req.Factor <= 0 {
			return fmt.Errorf("zoom factor must be positive, got %g", req.Factor)
		}
		sk.Zoom(req.Factor, v2.Vec{X: req.X, Y: req.Y})
		return nil

	case OpSnapshot:
		return nil
	}
	return fmt.Errorf("unknown op %q", req.Op)
}

// definitionFor builds the definition a create request asks for.
func definitionFor(req Request) (graph.Definition, error) {
	switch req.Kind {
	case "point":
		return graph.FreePoint{At: v2.Vec{X: req.X, Y: req.Y}}, nil
	case "free_line":
		return graph.FreeLine{
			Origin:    v2.Vec{X: req.X, Y: req.Y},
			Direction: v2.Vec{X: req.DX, Y: req.DY},
		}, nil
	case "line":
		return graph.LineThrough{From: req.A, Through: req.B}, nil
	case "on_line":
		return graph.OnLine{Line: req.A, T: req.T}, nil
	case "intersect":
		return graph.Intersection{A: req.A, B: req.B}, nil
	}
	return nil, fmt.Errorf("unknown kind %q", req.Kind)
}
