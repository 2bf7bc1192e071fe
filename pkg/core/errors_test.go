package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLaunchError(t *testing.T) {
	originalErr := errors.New("quota exceeded")
	wrapped := fmt.Errorf("tick: %w", &LaunchError{EntryID: 7, Err: originalErr})

	var launchErr *LaunchError
	assert.True(t, errors.As(wrapped, &launchErr))
	assert.Equal(t, int64(7), launchErr.EntryID)
	assert.ErrorIs(t, wrapped, originalErr)
	assert.Contains(t, launchErr.Error(), "launch entry 7")
	assert.Contains(t, launchErr.Error(), "quota exceeded")
}

func TestRejection_Error(t *testing.T) {
	r := Rejection{Index: 3, Reason: ReasonInHistory}
	assert.Equal(t, "row 3: in_history", r.Error())

	r.Detail = "already succeeded"
	assert.Equal(t, "row 3: in_history: already succeeded", r.Error())
}

func TestErrorVariables(t *testing.T) {
	assert.NotNil(t, ErrInvalidQueueName)
	assert.NotNil(t, ErrQueueNameTooLong)
	assert.NotNil(t, ErrBatchTooLarge)
	assert.NotNil(t, ErrMissingDataSource)
	assert.NotNil(t, ErrInvalidParams)
	assert.NotNil(t, ErrStaleQueue)
	assert.NotNil(t, ErrObjectNotFound)

	assert.Contains(t, ErrStaleQueue.Error(), "modified by another writer")
	assert.Contains(t, ErrMissingDataSource.Error(), "data path")
}
