package harness

// CaseResult records one evaluated case.
type CaseResult struct {
	Index     int       `json:"index"`
	RunID     string    `json:"run_id,omitempty"`
	Seq       int64     `json:"seq,omitempty"`
	Outputs   [][]int64 `json:"outputs,omitempty"`
	ErrorCode string    `json:"error_code,omitempty"`
}

// Instance is the scenario instantiated at one element type.
type Instance struct {
	// ElementType is the host spelling (s32), or "" for declared types.
	ElementType string `json:"element_type,omitempty"`

	ProgramHash string `json:"program_hash,omitempty"`

	// IR is the rendered program. Empty when lowering failed.
	IR string `json:"ir,omitempty"`

	// LowerError is the code lowering failed with, if it did.
	LowerError string `json:"lower_error,omitempty"`

	Cases []CaseResult `json:"cases,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every check, case and replay matched.
	Pass bool `json:"pass"`

	Instances []Instance `json:"instances"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Instances: []Instance{},
		Errors:    []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
