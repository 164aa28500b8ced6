package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := NotFound("gene ENSG0001")
	wrapped := Wrap(base, "failed to load genotypes")

	assert.Equal(t, CodeNotFound, GetCode(wrapped))
	assert.Equal(t, "failed to load genotypes: gene ENSG0001 not found", wrapped.Error())
}

func TestWrapPlainErrorIsInternal(t *testing.T) {
	wrapped := Wrapf(fmt.Errorf("disk gone"), "read %s", "results.txt.gz")

	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Contains(t, wrapped.Error(), "disk gone")
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Nil(t, WithCode(CodeNotFound, nil))
}

func TestHasCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", ValidationError("bad row"))

	assert.True(t, HasCode(err, CodeValidationError))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
}

func TestNewf(t *testing.T) {
	err := Newf(CodeInvalidInput, "expected %d fields, got %d", 4, 2)
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.Equal(t, "expected 4 fields, got 2", err.Error())
}
