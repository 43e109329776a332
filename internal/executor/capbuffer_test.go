package executor_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/code-sandbox/internal/executor"
)

func TestCapBufferUnderLimit(t *testing.T) {
	buf := executor.NewCapBuffer(16)

	n, err := buf.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", buf.String())
	assert.False(t, buf.Truncated())
}

func TestCapBufferTruncatesAtLimit(t *testing.T) {
	buf := executor.NewCapBuffer(8)

	n, err := buf.Write([]byte("0123456789"))
	assert.NoError(t, err)
	assert.Equal(t, 10, n, "writes report full length so io.Copy keeps draining")
	assert.Equal(t, "01234567", buf.String())
	assert.True(t, buf.Truncated())
}

func TestCapBufferDiscardsAfterFull(t *testing.T) {
	buf := executor.NewCapBuffer(4)

	for i := 0; i < 100; i++ {
		_, err := buf.Write([]byte(fmt.Sprintf("line %d\n", i)))
		assert.NoError(t, err)
	}

	assert.Len(t, buf.String(), 4)
	assert.True(t, buf.Truncated())
}
