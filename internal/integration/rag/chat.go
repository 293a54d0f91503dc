package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/futig/docchat/internal/entity"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const closeWriteTimeout = time.Second

// chatConnection is a scoped websocket to one chat session.
// Queries on one connection are serialized.
type chatConnection struct {
	ws            *websocket.Conn
	chatSessionID string

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newChatConnection(ws *websocket.Conn, chatSessionID string) *chatConnection {
	return &chatConnection{
		ws:            ws,
		chatSessionID: chatSessionID,
	}
}

// Query sends one question and blocks until the final answer, an error frame,
// or ctx is done. Without a ctx deadline the wait is unbounded.
func (c *chatConnection) Query(ctx context.Context, req *entity.QueryRequest) (*entity.QueryResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	correlationID := uuid.NewString()

	deadline, hasDeadline := ctx.Deadline()
	c.ws.SetWriteDeadline(deadline)
	c.ws.SetReadDeadline(deadline)

	// Unblock a pending read when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	ragConfig := req.RAGConfig
	frame := entity.ChatFrame{
		Type:          entity.ChatFrameQuery,
		CorrelationID: correlationID,
		ChatSessionID: c.chatSessionID,
		Message:       req.Message,
		LLM:           req.LLM,
		LLMArgs:       req.LLMArgs,
		RAGConfig:     &ragConfig,
	}

	if err := c.ws.WriteJSON(frame); err != nil {
		return nil, fmt.Errorf("%w: send query: %w", entity.ErrChatConnection, err)
	}

	partials := 0
	for {
		var reply entity.ChatFrame
		if err := c.ws.ReadJSON(&reply); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: wait for answer: %w", entity.ErrChatConnection, ctxErr)
			}
			// The socket deadline may fire before the ctx timer does.
			if hasDeadline && !time.Now().Before(deadline) {
				return nil, fmt.Errorf("%w: wait for answer: %w", entity.ErrChatConnection, context.DeadlineExceeded)
			}
			return nil, fmt.Errorf("%w: read answer: %w", entity.ErrChatConnection, err)
		}

		if reply.CorrelationID != "" && reply.CorrelationID != correlationID {
			continue
		}

		switch reply.Type {
		case entity.ChatFramePartial:
			partials++
		case entity.ChatFrameFinal:
			ctxzap.Debug(ctx, "chat answer received",
				zap.String("chat_session_id", c.chatSessionID),
				zap.String("message_id", reply.MessageID),
				zap.Int("partial_frames", partials),
			)
			return &entity.QueryResponse{
				Content:   reply.Body,
				MessageID: reply.MessageID,
			}, nil
		case entity.ChatFrameError:
			return nil, fmt.Errorf("%w: %s", entity.ErrRAGService, reply.Error)
		default:
			ctxzap.Debug(ctx, "ignoring chat frame", zap.String("type", reply.Type))
		}
	}
}

// Close sends a close frame and releases the socket. Safe to call twice.
func (c *chatConnection) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
