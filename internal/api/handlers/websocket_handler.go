package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/scan"
	"github.com/labelscan/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine *scan.Engine
}

func NewWebSocketHandler(engine *scan.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type        string   `json:"type"`
			Text        string   `json:"text"`
			Ingredients []string `json:"ingredients"`
			Enrich      bool     `json:"enrich"`
			TranslateSV bool     `json:"translate_sv"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "scan" {
			continue
		}

		err = h.streamScan(c, scan.Request{
			Text:        msg.Text,
			Ingredients: msg.Ingredients,
			Enrich:      msg.Enrich,
			TranslateSV: msg.TranslateSV,
		})
		if err != nil {
			logger.Error("Failed to stream scan", zap.Error(err))
			h.sendError(c, "Failed to process scan")
		}
	}
}

// streamScan runs the scan and pushes per-item progress so the client can
// render results as they land rather than waiting for the full response.
func (h *WebSocketHandler) streamScan(c *websocket.Conn, req scan.Request) error {
	ctx := context.Background()

	if err := h.send(c, map[string]interface{}{
		"type":    "status",
		"content": "Scanning label...",
	}); err != nil {
		return err
	}

	response, err := h.engine.ProcessScan(ctx, req)
	if err != nil {
		return err
	}

	if err := h.send(c, map[string]interface{}{
		"type":        "tokens",
		"ingredients": response.Ingredients,
	}); err != nil {
		return err
	}

	for i, item := range response.Items {
		if err := h.send(c, map[string]interface{}{
			"type":  "item",
			"index": i,
			"total": len(response.Items),
			"item":  item,
		}); err != nil {
			return err
		}
	}

	return h.send(c, map[string]interface{}{
		"type":        "complete",
		"scan_id":     response.ID,
		"pdf_matched": response.PDFMatched,
		"eu_enriched": response.EUEnriched,
		"latency_ms":  response.LatencyMS,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msg map[string]interface{}) error {
	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}
