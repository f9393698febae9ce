package workflow

import (
	"fmt"
	"strings"

	"github.com/langswarm/langswarm/internal/util"
)

// TemplateData is the data a step input template is rendered against.
type TemplateData struct {
	// Input is the workflow input given by the caller.
	Input string
	// Previous is the running input: the caller's input for the first step,
	// thereafter the previous completed step's output.
	Previous string
	// Outputs maps completed step names to their outputs.
	Outputs map[string]string
	// Results lists completed step results in declaration order.
	Results []StepResult
}

// RenderInput computes the message sent to the step's agent. Without a
// template a regular step receives Previous and an aggregate step receives
// every completed output labelled with its step name.
func (s Step) RenderInput(data TemplateData) (string, error) {
	if s.InputTemplate != "" {
		out, err := util.RenderTemplate(s.InputTemplate, data)
		if err != nil {
			return "", fmt.Errorf("step %s: render input: %w", s.Name, err)
		}
		return out, nil
	}
	if !s.Aggregate {
		return data.Previous, nil
	}

	if len(data.Results) == 0 {
		return data.Input, nil
	}
	return FormatOutputs(data.Results), nil
}

// FormatOutputs joins step outputs in order, each labelled with its step
// name.
func FormatOutputs(results []StepResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", r.StepName, r.Output)
	}
	return b.String()
}
