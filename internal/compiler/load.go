package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/build"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/hlolower/internal/hlo"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// NamedGraph is one compiled computation, keyed by its CUE label.
type NamedGraph struct {
	Name  string
	Graph *hlo.Graph
}

// LoadResult contains the computations compiled from a set of CUE files.
type LoadResult struct {
	Computations []NamedGraph // in CUE field order
	CUEValue     cue.Value
	FileCount    int
}

// Lookup returns the computation with the given name.
func (r *LoadResult) Lookup(name string) (*hlo.Graph, bool) {
	if r == nil {
		return nil, false
	}
	for _, c := range r.Computations {
		if c.Name == name {
			return c.Graph, true
		}
	}
	return nil, false
}

// Names lists the compiled computation names in load order.
func (r *LoadResult) Names() []string {
	names := make([]string, len(r.Computations))
	for i, c := range r.Computations {
		names[i] = c.Name
	}
	return names
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load error codes, shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Computation errors
	ErrCodeParameter   = "E010" // Bad or missing parameter
	ErrCodeInstruction = "E011" // Bad instruction name
	ErrCodeOperands    = "E012" // Unresolvable operand or wrong arity
	ErrCodeInvalidType = "E013" // Invalid element type (e.g., float) or dims
	ErrCodeOpcode      = "E014" // Unsupported opcode
	ErrCodeRoot        = "E015" // Bad root reference
)

// MapFieldToErrorCode maps a CompileError field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case strings.HasSuffix(field, ".type"), strings.HasSuffix(field, ".dims"):
		return ErrCodeInvalidType
	case strings.HasSuffix(field, ".opcode"):
		return ErrCodeOpcode
	case strings.HasSuffix(field, ".operands"):
		return ErrCodeOperands
	case strings.HasPrefix(field, "parameter"):
		return ErrCodeParameter
	case strings.HasPrefix(field, "instruction"):
		return ErrCodeInstruction
	case field == "root":
		return ErrCodeRoot
	default:
		return ErrCodeGeneric
	}
}

// LoadDir loads and compiles every computation in the CUE package in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	return compileInstances(instances, len(cueFiles), mode)
}

// LoadFiles loads and compiles computations from explicit CUE files. The
// files must belong to one directory, as cue/load requires for file
// arguments.
func LoadFiles(mode LoadMode, paths ...string) (*LoadResult, []error) {
	if len(paths) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: "no CUE files given"}}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("spec file not found: %s", p), Err: err}}
		}
		if filepath.Ext(p) != ".cue" {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("not a CUE file: %s", p)}}
		}
	}

	instances := load.Instances(paths, &load.Config{})
	return compileInstances(instances, len(paths), mode)
}

func compileInstances(instances []*build.Instance, fileCount int, mode LoadMode) (*LoadResult, []error) {
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err), Err: inst.Err}}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err), Err: err}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: fileCount,
	}

	var errs []error
	compVal := value.LookupPath(cue.ParsePath("computation"))
	if compVal.Exists() {
		iter, iterErr := compVal.Fields()
		if iterErr != nil {
			return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating computations: %v", iterErr)}}
		}
		for iter.Next() {
			g, compileErr := CompileComputation(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "computation."+iter.Selector().String()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Computations = append(result.Computations, NamedGraph{Name: g.Name(), Graph: g})
		}
	}

	if len(result.Computations) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no computations found in specs"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
			Err:     err,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
		Err:     err,
	}
}
