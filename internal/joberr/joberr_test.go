package joberr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("start: %w", Wrap(CodeSpawnFailed, "exec", errors.New("boom")))

	assert.True(t, errors.Is(err, New(CodeSpawnFailed, "")))
	assert.False(t, errors.Is(err, New(CodeEngineNotFound, "")))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeFailed, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeUnknownPreset, CodeOf(fmt.Errorf("wrap: %w", New(CodeUnknownPreset, "x"))))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
	assert.Equal(t, "no such preset", MessageOf(New(CodeUnknownPreset, "no such preset")))
	assert.Equal(t, "rename: disk full", MessageOf(Wrap(CodeFinalizeFailed, "rename", errors.New("disk full"))))
}

func TestError_String(t *testing.T) {
	assert.Equal(t, "job_failed: exit 1", New(CodeFailed, "exit 1").Error())
	assert.Equal(t, "job_wait_failed: io", Wrap(CodeWaitFailed, "", errors.New("io")).Error())
}
