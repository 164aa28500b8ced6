package logging

import (
	"bytes"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetup(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(func() { Setup(&buf, "info", false) })

	assert.Equal(t, log.WarnLevel, Setup(&buf, "WARN", false))
	assert.Equal(t, log.TraceLevel, Setup(&buf, "trace", true))
	assert.Equal(t, log.DebugLevel, Setup(&buf, "error", true))
	assert.Equal(t, log.InfoLevel, Setup(&buf, "", false))

	buf.Reset()
	assert.Equal(t, log.InfoLevel, Setup(&buf, "loud", false))
	assert.Contains(t, buf.String(), "unknown LOG_LEVEL")
}
