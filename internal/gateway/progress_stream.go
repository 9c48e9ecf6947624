package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/code-harmonizer/internal/harmonization"
	"github.com/bizmatters/code-harmonizer/internal/models"
	"github.com/bizmatters/code-harmonizer/internal/session"
)

const writeTimeout = 5 * time.Second

// ProgressStream runs harmonizations over a websocket and streams every
// progress snapshot to the client
type ProgressStream struct {
	workspace *session.Workspace
	tracer    trace.Tracer
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewProgressStream creates a new progress stream handler
func NewProgressStream(workspace *session.Workspace, logger *zap.Logger) *ProgressStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressStream{
		workspace: workspace,
		tracer:    otel.Tracer("harmonizer-progress-stream"),
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				logger.Debug("websocket connection", zap.String("origin", r.Header.Get("Origin")))
				return true
			},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// StreamHarmonize handles WebSocket /api/ws/harmonize
// @Summary Run a harmonization and stream its progress
// @Description Runs the pipeline on the current workspace. Sends step_update events, then completed, not_ready or error, then closes.
// @Tags harmonize
// @Success 101 "Switching Protocols"
// @Router /ws/harmonize [get]
func (p *ProgressStream) StreamHarmonize(c *gin.Context) {
	ctx, span := p.tracer.Start(c.Request.Context(), "progress_stream.harmonize")
	defer span.End()

	runID := uuid.New().String()
	span.SetAttributes(attribute.String("run_id", runID))

	conn, err := p.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		p.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s := &eventSender{conn: conn, runID: runID, logger: p.logger}

	result, err := p.workspace.Harmonize(ctx, func(progress harmonization.Progress) {
		s.send(models.EventStepUpdate, progress)
	})

	var notReady *harmonization.NotReadyError
	switch {
	case err == nil:
		s.send(models.EventCompleted, result)
	case errors.As(err, &notReady):
		s.send(models.EventNotReady, notReady.Readiness)
	case errors.Is(err, session.ErrRunInProgress):
		s.sendError("A harmonization is already running")
	default:
		span.RecordError(err)
		p.logger.Error("streamed harmonization failed", zap.String("run_id", runID), zap.Error(err))
		s.sendError("Harmonization failed")
	}

	s.close()
}

// eventSender writes events until the first write failure. The run itself
// continues when the client goes away.
type eventSender struct {
	conn   *websocket.Conn
	runID  string
	logger *zap.Logger
	broken bool
}

func (s *eventSender) send(eventType string, data interface{}) {
	if s.broken {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := s.conn.WriteJSON(models.StreamEvent{
		EventType: eventType,
		RunID:     s.runID,
		Data:      data,
	})
	if err != nil {
		s.broken = true
		s.logger.Info("client stopped receiving progress",
			zap.String("run_id", s.runID),
			zap.Error(err),
		)
	}
}

func (s *eventSender) sendError(message string) {
	s.send(models.EventError, map[string]string{"error": message})
}

func (s *eventSender) close() {
	if s.broken {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
