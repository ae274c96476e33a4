// Package flow drives the leaf agent tool loop: build a request from
// instructions, history and input, call the backend, dispatch requested
// tools, feed their results back and repeat until the model answers with
// text or the tool round limit is reached.
package flow

import (
	"errors"

	"github.com/hupe1980/studymesh/backend"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/tool"
)

// ErrMaxToolRounds is returned when a leaf agent keeps requesting tools
// beyond its round limit. It is fatal for the invocation and not retried.
var ErrMaxToolRounds = errors.New("max tool-call rounds exceeded")

// Flow defines the interface for agent execution flows.
type Flow interface {
	// Run executes one agent turn, emitting events through runCtx.
	Run(runCtx *core.RunContext) error
}

// FlowAgent defines what a flow needs from the agent it drives.
type FlowAgent interface {
	// Name returns the agent's name, used as event author.
	Name() string

	// Caller returns the backend caller (model + retry policy).
	Caller() *backend.Caller

	// ResolveInstructions returns the raw instruction template.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// Registry returns the agent's sealed tool registry.
	Registry() *tool.Registry

	// MaxHistoryMessages bounds the prior conversation sent to the model (0: all).
	MaxHistoryMessages() int

	// MaxToolRounds bounds how many model responses may request tools.
	MaxToolRounds() int

	// IsStreamingEnabled reports whether partial responses are requested.
	IsStreamingEnabled() bool
}

// RequestProcessor processes the request before it is sent to the model.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}
