package sessions

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/poll"
	"github.com/classpulse/backend/pkg/response"
)

// Handler exposes the minimal request/response surface outside the realtime
// protocol: session creation and a session lookup. Both are thin wrappers
// over engine-serialized directory operations.
type Handler struct {
	engine    *poll.Engine
	directory *poll.Directory
	logger    *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(engine *poll.Engine, directory *poll.Directory, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, directory: directory, logger: logger}
}

// Create handles POST /sessions. Returns the new session id; the teacher then
// attaches over the websocket with teacher:init{pollId}.
func (h *Handler) Create(c *gin.Context) {
	var id string
	h.engine.DoWait(func() {
		id = h.directory.Create().ID
	})
	h.logger.Info("session created via http", zap.String("session_id", id))
	response.Created(c, gin.H{"id": id})
}

// Get handles GET /sessions/:id. Reports whether the session exists and has a
// teacher attached, so a student client can decide between joining and
// waiting.
func (h *Handler) Get(c *gin.Context) {
	id := c.Param("id")
	var (
		found      bool
		hasTeacher bool
		students   int
	)
	h.engine.DoWait(func() {
		s := h.directory.Get(id)
		if s == nil {
			return
		}
		found = true
		hasTeacher = s.HasTeacher()
		students = len(s.Students())
	})
	if !found {
		response.NotFound(c, "session not found")
		return
	}
	response.OK(c, gin.H{"id": id, "hasTeacher": hasTeacher, "students": students})
}
