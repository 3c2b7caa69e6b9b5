package tabsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMemoryLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    int64
		expected int64
	}{
		{"zero selects default", 0, defaultMemoryLimitMB},
		{"negative selects default", -1, defaultMemoryLimitMB},
		{"reasonable value kept", 1024, 1024},
		{"absurd value capped", 1 << 30, maxReasonableMemoryLimitMB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ml := NewMemoryLimit(tt.input)
			assert.Equal(t, tt.expected, ml.maxMemoryMB)
			assert.True(t, ml.IsEnabled())
		})
	}
}

func TestMemoryLimit_EnableDisable(t *testing.T) {
	t.Parallel()

	ml := NewMemoryLimit(100)
	assert.True(t, ml.IsEnabled())

	ml.Disable()
	assert.False(t, ml.IsEnabled())
	assert.Equal(t, MemoryStatusOK, ml.CheckMemoryUsage())

	ml.Enable()
	assert.True(t, ml.IsEnabled())
}

func TestMemoryLimit_CheckMemoryUsage(t *testing.T) {
	t.Parallel()

	t.Run("huge limit reports ok", func(t *testing.T) {
		t.Parallel()

		ml := NewMemoryLimit(maxReasonableMemoryLimitMB)
		assert.Equal(t, MemoryStatusOK, ml.CheckMemoryUsage())
	})

	t.Run("tiny limit reports exceeded", func(t *testing.T) {
		t.Parallel()

		// The test binary heap is always past a 1MB ceiling.
		ml := NewMemoryLimit(1)
		assert.Equal(t, MemoryStatusExceeded, ml.CheckMemoryUsage())
	})
}

func TestMemoryLimit_ShouldReduceBatchSize(t *testing.T) {
	t.Parallel()

	t.Run("under pressure batch shrinks", func(t *testing.T) {
		t.Parallel()

		ml := NewMemoryLimit(1)
		reduce, newSize := ml.ShouldReduceBatchSize(1000)
		assert.True(t, reduce)
		assert.Equal(t, 250, newSize)
	})

	t.Run("no pressure keeps size", func(t *testing.T) {
		t.Parallel()

		ml := NewMemoryLimit(maxReasonableMemoryLimitMB)
		reduce, newSize := ml.ShouldReduceBatchSize(1000)
		assert.False(t, reduce)
		assert.Equal(t, 1000, newSize)
	})

	t.Run("disabled never shrinks", func(t *testing.T) {
		t.Parallel()

		ml := NewMemoryLimit(1)
		ml.Disable()
		reduce, newSize := ml.ShouldReduceBatchSize(1000)
		assert.False(t, reduce)
		assert.Equal(t, 1000, newSize)
	})
}

func TestMemoryStatus_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "OK", MemoryStatusOK.String())
	assert.Equal(t, "WARNING", MemoryStatusWarning.String())
	assert.Equal(t, "EXCEEDED", MemoryStatusExceeded.String())
	assert.Equal(t, "UNKNOWN", MemoryStatus(99).String())
}
