package errs

import "errors"

// Content store failures
var (
	IoError        = errors.New("storage medium failure")
	BlobNotFound   = errors.New("blob not found")
	CorruptArchive = errors.New("corrupt archive")
)

// Pipeline precondition violations, surfaced immediately to the caller
var (
	ContestNotOpen    = errors.New("contest is not open")
	AlreadyEvaluating = errors.New("an evaluation is already in progress for this submission")
)

// Terminal evaluation failures, recorded on the evaluation and never
// thrown past the pipeline boundary
var (
	Cancelled    = errors.New("evaluation cancelled")
	JudgeCrashed = errors.New("judge crashed")
	Timeout      = errors.New("evaluation deadline exceeded")
)

// Configuration and lookup failures
var (
	MalformedTime   = errors.New("malformed contest timestamp")
	ContestNotFound = errors.New("contest not initialized")
	ProblemNotFound = errors.New("problem not found")
)
