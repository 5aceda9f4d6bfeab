package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesOriginalCode(t *testing.T) {
	err := Clone(ErrAUCapExceeded, "registering CS101 would exceed 21 AU")

	assert.True(t, stderrors.Is(err, ErrAUCapExceeded))
	assert.False(t, stderrors.Is(err, ErrVacancyFull))
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.True(t, IsCapacity(err))
}

func TestWrappedErrorMatchesThroughFmt(t *testing.T) {
	err := fmt.Errorf("load index: %w", Clone(ErrNotFound, "index not found"))

	assert.True(t, stderrors.Is(err, ErrNotFound))
	assert.Equal(t, "NOT_FOUND", FromError(err).Code)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(stderrors.New("boom"))

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: boom", appErr.Error())
	assert.Nil(t, FromError(nil))
}
