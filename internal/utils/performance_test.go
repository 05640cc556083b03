package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTimer_WarnsWhenSlow(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.WarnLevel)

	timer := NewTimer("provider_call", time.Nanosecond, log)
	time.Sleep(time.Millisecond)
	duration := timer.Stop()

	assert.GreaterOrEqual(t, duration, time.Millisecond)
	assert.Contains(t, buf.String(), "Slow operation detected")
	assert.Contains(t, buf.String(), "provider_call")
}

func TestTimer_QuietWhenFast(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.WarnLevel)

	NewTimer("fast", time.Hour, log).Stop()
	OperationTimer("fast", log)()

	assert.Empty(t, buf.String())
}
