package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	cause := errors.New("boom")

	assert.Equal(t, "[plan_parse] bad plan", New(ErrKindPlanParse, "bad plan").Error())
	assert.Equal(t, "[query_failed] catalog: boom", Wrap(ErrKindQueryFailed, "catalog", cause).Error())
	assert.Equal(t, "[type_resolution] type 42 missing", Newf(ErrKindTypeResolution, "type %d missing", 42).Error())
}

func TestPredicates_TraverseChain(t *testing.T) {
	cause := errors.New("eof")
	err := fmt.Errorf("describe: %w", Wrap(ErrKindConnectionAborted, "stream gone", cause))

	assert.True(t, IsConnectionAborted(err))
	assert.False(t, IsMisuse(err))
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrKind
	}{
		{"plain error", errors.New("x"), ErrKindUnknown},
		{"nil", nil, ErrKindUnknown},
		{"not found", New(ErrKindNotFound, "x"), ErrKindNotFound},
		{"misuse", New(ErrKindMisuse, "x"), ErrKindMisuse},
		{"wrapped timeout", fmt.Errorf("ctx: %w", New(ErrKindTimeout, "x")), ErrKindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrKind_String(t *testing.T) {
	assert.Equal(t, "connection_aborted", ErrKindConnectionAborted.String())
	assert.Equal(t, "unknown", ErrKind(99).String())
}
