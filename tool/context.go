package tool

import (
	"context"

	"github.com/langswarm/langswarm/logging"
)

// Context is the execution context handed to a tool. It embeds the caller's
// context.Context and exposes the originating call id plus a logger.
type Context interface {
	context.Context
	CallID() string
	Logger() logging.Logger
}

type toolContext struct {
	context.Context
	callID string
	logger logging.Logger
}

func (c *toolContext) CallID() string         { return c.callID }
func (c *toolContext) Logger() logging.Logger { return c.logger }

// NewContext wraps ctx for a single tool call.
func NewContext(ctx context.Context, callID string, logger logging.Logger) Context {
	return &toolContext{Context: ctx, callID: callID, logger: logging.OrNoOp(logger)}
}
