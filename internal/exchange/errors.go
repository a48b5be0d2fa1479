package exchange

import "fmt"

// ProcessingError reports a callback that could not be turned into a
// response document
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("callback %s failed: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Callback processing stages
const (
	StageParse   = "parse"
	StageDecrypt = "decrypt"
	StageDecode  = "decode"
)
