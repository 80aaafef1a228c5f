package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"hive-monitor/models"
	"hive-monitor/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

// socketController handles the live dashboard connection: readings ingested
// over the socket, model info requests, and classification broadcasts.
type socketController struct {
	server    *socketio.Server
	processor *eventProcessor
	info      modelInfo
}

func newSocketController(server *socketio.Server, processor *eventProcessor, info modelInfo) *socketController {
	return &socketController{server: server, processor: processor, info: info}
}

func (c *socketController) emitModelInfo(socket socketio.Conn) {
	socket.Emit("modelInfo", c.info)
}

func (c *socketController) handleRequestModelInfo(socket socketio.Conn) {
	c.emitModelInfo(socket)
}

// handleReading ingests one sensor payload delivered over the socket.
func (c *socketController) handleReading(socket socketio.Conn, readingData string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	if readingData == "" {
		logger.ErrorContext(ctx, "no data received in reading event")
		socket.Emit("readingError", map[string]string{"message": "no reading data received"})
		return
	}

	var payload models.SensorPayload
	if err := json.Unmarshal([]byte(readingData), &payload); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to parse reading payload", slog.Any("error", err))
		socket.Emit("readingError", map[string]string{"message": "invalid reading payload"})
		return
	}

	logger.InfoContext(ctx, "received reading",
		slog.String("socketID", socket.ID()),
		slog.String("deviceID", payload.DeviceID),
		slog.Int("frequencyBins", payloadBinCount(&payload)),
	)

	messageID := fmt.Sprintf("sock_%08x", utils.GenerateUniqueID())
	record, err := c.processor.processPayload(&payload, "", messageID)
	if err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to process reading", slog.Any("error", err))
		socket.Emit("readingError", map[string]string{"message": "failed to process reading"})
		return
	}

	socket.Emit("classificationResult", record)
}

// broadcastRecord pushes a freshly persisted record to every connected
// dashboard, with a separate alert event for high-risk behavior.
func (c *socketController) broadcastRecord(record *models.ClassificationRecord) {
	c.server.BroadcastToNamespace("/", "classification", record)

	if record.Prediction != "normal" {
		c.server.BroadcastToNamespace("/", "alert", map[string]interface{}{
			"deviceID":   record.DeviceID,
			"prediction": record.Prediction,
			"confidence": record.Confidence,
			"timestamp":  record.Timestamp,
		})
	}
}

func payloadBinCount(payload *models.SensorPayload) int {
	if payload.Audio == nil {
		return 0
	}
	return len(payload.Audio.Frequencies)
}
