package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrConfigParse, "bad fragment")
	assert.Equal(t, ErrConfigParse, err.Code)
	assert.Equal(t, "bad fragment", err.Message)
	assert.Equal(t, "[CONFIG_PARSE] bad fragment", err.Error())
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("yaml: line 3: mapping values are not allowed")
	err := Wrap(inner, ErrConfigLoad, "failed to load fragment")
	assert.Equal(t, inner, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "CONFIG_LOAD")
	assert.Contains(t, err.Error(), inner.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternal, "should be nil"))
	assert.Nil(t, Wrapf(nil, ErrInternal, "should be %s", "nil"))
}

func TestIsByCode(t *testing.T) {
	err := Newf(ErrSelectorCycle, "selector %q references itself", "nightly")
	wrapped := fmt.Errorf("outer: %w", err)

	assert.True(t, errors.Is(wrapped, New(ErrSelectorCycle, "")))
	assert.False(t, errors.Is(wrapped, New(ErrSelectorSyntax, "")))
	assert.True(t, IsErrorCode(wrapped, ErrSelectorCycle))
	assert.Equal(t, ErrSelectorCycle, GetErrorCode(wrapped))
}

func TestGetErrorCodeUnknown(t *testing.T) {
	assert.Equal(t, ErrUnknown, GetErrorCode(errors.New("plain")))
}

func TestWithDetails(t *testing.T) {
	err := New(ErrSelectorUndefined, "unknown selector").
		WithDetail("name", "nightly").
		WithDetails(map[string]interface{}{"available": []string{"daily"}})

	details := GetErrorDetails(err)
	assert.Equal(t, "nightly", details["name"])
	assert.Equal(t, []string{"daily"}, details["available"])
}

func TestWithSpan(t *testing.T) {
	err := New(ErrSelectorSyntax, "bad atom").WithSpan(12, 7)
	assert.Equal(t, 12, err.Details["line"])
	assert.Equal(t, 7, err.Details["column"])
}

func TestWithTokenIndex(t *testing.T) {
	err := New(ErrSelectorSyntax, "bad token").WithTokenIndex(2)
	assert.Equal(t, 2, err.Details["token"])
}
