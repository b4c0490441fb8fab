package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, false)
	assert.True(t, Initialized())

	cleaned := false
	func() {
		defer RecoverPanic("worker", func() { cleaned = true })
		panic("boom")
	}()

	assert.True(t, cleaned)
	assert.Contains(t, buf.String(), "Panic in worker")
	assert.Contains(t, buf.String(), "boom")
}

func TestRecoverPanicWithoutPanic(t *testing.T) {
	called := false
	func() {
		defer RecoverPanic("idle", func() { called = true })
	}()
	assert.False(t, called)
}
