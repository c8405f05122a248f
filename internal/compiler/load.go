package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during query loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Load error codes (E001-E009), shared by every CLI command.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	// Query compile errors
	ErrCodeInvalidPattern = "E110" // Malformed pattern
	ErrCodeInvalidGraph   = "E111" // Malformed graph
	ErrCodeInvalidFilter  = "E112" // Malformed filter
	ErrCodeInvalidSelect  = "E113" // Malformed select
)

// LoadResult contains the results of loading queries from a directory.
type LoadResult struct {
	Queries   []Query
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Names returns the query names in load order.
func (r *LoadResult) Names() []string {
	names := make([]string, len(r.Queries))
	for i, q := range r.Queries {
		names[i] = q.Name
	}
	return names
}

// Find returns the query called name.
func (r *LoadResult) Find(name string) (*Query, bool) {
	for i := range r.Queries {
		if r.Queries[i].Name == name {
			return &r.Queries[i], true
		}
	}
	return nil, false
}

// LoadError represents an error that occurred during query loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadQueries loads and compiles every query: entry in the CUE package
// in dir. Queries are returned in CUE field order.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadQueries(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("queries directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing queries directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	// Find CUE files
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	// Load CUE instances
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	// Check for load errors
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	// Build value from instance
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}
	result.Queries, errs = CompileQueries(value, mode)

	// Check if we found anything
	if len(result.Queries) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no queries found"})
	}

	return result, errs
}

// CompileQueries compiles every field under query: in value.
func CompileQueries(value cue.Value, mode LoadMode) ([]Query, []error) {
	var (
		queries []Query
		errs    []error
	)
	queriesVal := value.LookupPath(cue.ParsePath("query"))
	if !queriesVal.Exists() {
		return nil, nil
	}
	iter, err := queriesVal.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating queries: %v", err)}}
	}
	for iter.Next() {
		q, compileErr := CompileQuery(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "query."+iter.Label()))
			if mode == LoadModeFailFast {
				return queries, errs
			}
			continue
		}
		queries = append(queries, *q)
	}
	return queries, errs
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
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a compiler error field to an error code. Field
// names carry list indexes and step prefixes, e.g. "steps[1].filters[0].op".
func MapFieldToErrorCode(field string) string {
	switch {
	case containsSegment(field, "filters"):
		return ErrCodeInvalidFilter
	case containsSegment(field, "patterns"):
		return ErrCodeInvalidPattern
	case containsSegment(field, "graph"):
		return ErrCodeInvalidGraph
	case containsSegment(field, "select"):
		return ErrCodeInvalidSelect
	default:
		return ErrCodeGeneric
	}
}

// containsSegment reports whether name appears in field as a whole path
// segment, ignoring any [i] index.
func containsSegment(field, name string) bool {
	for _, seg := range strings.Split(field, ".") {
		seg, _, _ = strings.Cut(seg, "[")
		if seg == name {
			return true
		}
	}
	return false
}
