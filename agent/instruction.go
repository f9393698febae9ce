package agent

import "github.com/langswarm/langswarm/internal/util"

// InstructionContext is the data available when a system prompt is resolved.
// Static instructions are rendered as text/template against it, so a prompt
// may reference {{.AgentID}}, {{.SessionID}}, {{.Model}} or {{.Provider}}.
type InstructionContext struct {
	AgentID   string
	SessionID string
	Model     string
	Provider  string
}

// InstructionProvider supplies dynamic instruction text at runtime.
type InstructionProvider interface {
	Instruction(InstructionContext) (string, error)
}

// InstructionFunc is a functional adapter to allow ordinary functions to be
// used as InstructionProviders.
type InstructionFunc func(InstructionContext) (string, error)

// Instruction implements InstructionProvider.
func (f InstructionFunc) Instruction(ic InstructionContext) (string, error) { return f(ic) }

// Instruction represents either a static instruction template or a dynamic
// provider.
type Instruction struct {
	text     string
	provider InstructionProvider
}

// NewInstructionFromText creates an Instruction from a static template.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p InstructionProvider) Instruction {
	return Instruction{provider: p}
}

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(InstructionContext) (string, error)) Instruction {
	return Instruction{provider: InstructionFunc(f)}
}

// IsStatic returns true if the instruction is backed by a static template.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
// Static text without template actions is returned unchanged.
func (i Instruction) Resolve(ic InstructionContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ic)
	}
	return util.RenderTemplate(i.text, ic)
}
