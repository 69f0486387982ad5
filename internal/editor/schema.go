package editor

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaSource string

// Schema checks raw documents against schema.cue.
//
// A cue.Context is not safe for concurrent use, so Check serializes callers.
type Schema struct {
	mu       sync.Mutex
	ctx      *cue.Context
	document cue.Value
}

// NewSchema compiles the embedded schema.
func NewSchema() (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	doc := v.LookupPath(cue.ParsePath("#Document"))
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Document: %w", err)
	}
	return &Schema{ctx: ctx, document: doc}, nil
}

// Check validates data, which must already be syntactically valid JSON.
func (s *Schema) Check(data []byte) error {
	expr, err := cuejson.Extract("site-css.json", data)
	if err != nil {
		return syntaxError(data, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.BuildExpr(expr)
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}
	if err := s.document.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError keeps the first error and its position in the document.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Code: ErrCodeSchema, Message: err.Error()}
	}
	first := errs[0]
	ve := &ValidationError{Code: ErrCodeSchema, Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		ve.Field = strings.Join(path, ".")
	}
	for _, pos := range cueerrors.Positions(first) {
		if pos.Filename() == "site-css.json" {
			ve.Line, ve.Column = pos.Line(), pos.Column()
			break
		}
	}
	return ve
}

// syntaxError converts a JSON decoding failure into a positioned
// ValidationError.
func syntaxError(data []byte, err error) *ValidationError {
	ve := &ValidationError{Code: ErrCodeSyntax, Message: err.Error()}

	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	offset := int64(-1)
	switch {
	case errors.As(err, &se):
		offset = se.Offset
	case errors.As(err, &te):
		offset = te.Offset
	}
	if offset >= 0 {
		ve.Line, ve.Column = lineColumn(data, offset)
	}
	return ve
}

// lineColumn converts a byte offset into 1-based line and column.
func lineColumn(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col := 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
