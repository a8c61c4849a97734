package common

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	LogError(errors.New("boom"), "Failed to parse statement file", Fields{"file": "current.ofx"})

	out := buf.String()
	assert.Contains(t, out, "Failed to parse statement file")
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"file":"current.ofx"`)
}
