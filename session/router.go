package session

import (
	"encoding/json"
	"log/slog"

	"github.com/pawtrack/walkstream/errors"
	"github.com/pawtrack/walkstream/securepipe"
)

// Message type discriminators sent by the tracking backend.
const (
	// MessageTypeAck acknowledges a received batch.
	MessageTypeAck = "ack"

	// MessageTypeSessionStatus carries walk session status changes.
	MessageTypeSessionStatus = "sessionStatus"

	// MessageTypeControl carries backend control directives.
	MessageTypeControl = "control"
)

// Message is one decoded inbound message. Payload stays raw so observers can
// unmarshal the shape they expect for the given Type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// router decodes inbound frames and dispatches them to the registered
// observer. Decode and parse failures drop the frame and never disturb the
// session.
type router struct {
	pipeline *securepipe.Pipeline
	logger   *slog.Logger
	metrics  *sessionMetrics
}

func newRouter(pipeline *securepipe.Pipeline, logger *slog.Logger, metrics *sessionMetrics) *router {
	return &router{pipeline: pipeline, logger: logger, metrics: metrics}
}

// route decodes one frame and returns the message, or false if the frame was
// dropped. Dropped frames are logged and counted, never surfaced as errors.
func (r *router) route(frame []byte) (Message, bool) {
	r.metrics.frameReceived()

	if len(frame) == 0 {
		r.metrics.frameDropped()
		r.logger.Debug("empty inbound frame dropped")
		return Message{}, false
	}

	payload, err := r.pipeline.Decode(frame)
	if err != nil {
		r.metrics.frameDropped()
		if errors.IsInvalid(err) {
			r.logger.Warn("inbound frame failed decode", "error", err)
		} else {
			r.logger.Error("inbound frame decode error", "error", err)
		}
		return Message{}, false
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		r.metrics.frameDropped()
		r.logger.Warn("inbound message unparseable", "error", err)
		return Message{}, false
	}
	switch msg.Type {
	case MessageTypeAck, MessageTypeSessionStatus, MessageTypeControl:
	case "":
		r.metrics.frameDropped()
		r.logger.Warn("inbound message missing type discriminator")
		return Message{}, false
	default:
		r.metrics.frameDropped()
		r.logger.Debug("inbound message of unknown type dropped", "type", msg.Type)
		return Message{}, false
	}

	return msg, true
}
