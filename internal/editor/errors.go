package editor

import "fmt"

// Validation error codes (E200-E299)
const (
	ErrCodeSyntax      = "E201" // not valid JSON
	ErrCodeSchema      = "E202" // valid JSON, wrong structure
	ErrCodeDuplicateID = "E203" // two rules share an id
	ErrCodeNoRules     = "E204" // draft has no rules array to insert into
)

// ValidationError explains why a document was refused. Nothing is written
// when one is returned.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (e *ValidationError) Error() string {
	loc := ""
	if e.Line > 0 {
		loc = fmt.Sprintf("line %d:%d: ", e.Line, e.Column)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s%s: %s", e.Code, loc, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s%s", e.Code, loc, e.Message)
}
