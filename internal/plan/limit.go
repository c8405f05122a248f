package plan

import (
	"errors"
	"fmt"
)

// buildQuota counts rows added to one hash table and enforces the
// configured ceiling.
//
// Each HashJoinStep execution gets its own quota; nothing is shared across
// steps or queries.
type buildQuota struct {
	step    string
	limit   int // 0 means unlimited
	current int
}

// Check counts one more row. It returns *BuildLimitError once the limit is
// exceeded.
func (q *buildQuota) Check() error {
	q.current++
	if q.limit > 0 && q.current > q.limit {
		return &BuildLimitError{Step: q.step, Rows: q.current, Limit: q.limit}
	}
	return nil
}

// BuildLimitError is returned when the build side of a hash join exceeds
// WithMaxBuildRows. The partially built table is dropped.
type BuildLimitError struct {
	Step  string // The step whose build side overflowed
	Rows  int    // Rows read when the limit tripped
	Limit int    // Configured maximum
}

// Error implements the error interface.
func (e *BuildLimitError) Error() string {
	return fmt.Sprintf("hash join %s exceeded build limit: %d rows > %d limit",
		e.Step, e.Rows, e.Limit)
}

// IsBuildLimitError returns true if the error is a BuildLimitError.
// Uses errors.As to handle wrapped errors.
func IsBuildLimitError(err error) bool {
	var be *BuildLimitError
	return errors.As(err, &be)
}
