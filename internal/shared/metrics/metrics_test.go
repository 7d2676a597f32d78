package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{409, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusLabel(tt.status))
		})
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m := New("collab_test")
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/collaboration/sessions/:id", 200, 25*time.Millisecond)
		m.RecordHTTPRequest("POST", "/collaboration/cursor", 404, time.Millisecond)
	})
}
