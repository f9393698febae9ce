package workflow

import "time"

// Status is the lifecycle state of a workflow execution or of one step.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusRunning    Status = "RUNNING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	// StatusSkipped marks steps not run because an earlier step failed.
	StatusSkipped Status = "SKIPPED"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

func (s Status) String() string { return string(s) }

// StepResult records the outcome of one step.
type StepResult struct {
	StepName string        `json:"step_name"`
	AgentID  string        `json:"agent_id"`
	Input    string        `json:"input,omitempty"`
	Output   string        `json:"output"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// Result is the outcome of one workflow execution. It is produced once per
// Execute call and owned by the caller.
type Result struct {
	WorkflowID  string        `json:"workflow_id"`
	ExecutionID string        `json:"execution_id"`
	Mode        ExecutionMode `json:"mode"`
	Status      Status        `json:"status"`
	// Output is the output of the last completed step: the aggregate step
	// when present, otherwise the final sequential step.
	Output      string       `json:"output"`
	StepResults []StepResult `json:"step_results"`
	// FailedStep names the first step that failed.
	FailedStep string        `json:"failed_step,omitempty"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Succeeded reports whether the workflow completed.
func (r *Result) Succeeded() bool { return r.Status == StatusCompleted }

// Step returns the result of the named step.
func (r *Result) Step(name string) (StepResult, bool) {
	for _, sr := range r.StepResults {
		if sr.StepName == name {
			return sr, true
		}
	}
	return StepResult{}, false
}

// Outputs returns the outputs of completed steps keyed by step name.
func (r *Result) Outputs() map[string]string {
	out := make(map[string]string, len(r.StepResults))
	for _, sr := range r.StepResults {
		if sr.Status == StatusCompleted {
			out[sr.StepName] = sr.Output
		}
	}
	return out
}

// Fail marks the result failed on behalf of step. Only the first failure is
// recorded as FailedStep and Err.
func (r *Result) Fail(step string, err error) {
	r.Status = StatusFailed
	if r.Err != nil {
		return
	}
	r.FailedStep = step
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}
