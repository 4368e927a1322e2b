package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetters(t *testing.T) {
	t.Setenv("AUTOFLOW_TEST_BOOL", "true")
	t.Setenv("AUTOFLOW_TEST_BAD_BOOL", "maybe")
	t.Setenv("AUTOFLOW_TEST_INT", "42")
	t.Setenv("AUTOFLOW_TEST_STRING", "  ")
	e := &EnvService{}

	assert.True(t, e.GetBool("AUTOFLOW_TEST_BOOL", false))
	assert.True(t, e.GetBool("AUTOFLOW_TEST_BAD_BOOL", true))
	assert.False(t, e.GetBool("AUTOFLOW_TEST_UNSET", false))
	assert.Equal(t, 42, e.GetInt("AUTOFLOW_TEST_INT", 0))
	assert.Equal(t, 7, e.GetInt("AUTOFLOW_TEST_BOOL", 7))
	assert.Equal(t, "fallback", e.GetString("AUTOFLOW_TEST_STRING", "fallback"))

	_, err := e.MustGet("AUTOFLOW_TEST_UNSET")
	assert.ErrorContains(t, err, "AUTOFLOW_TEST_UNSET")
	v, err := e.MustGet("AUTOFLOW_TEST_INT")
	assert.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestGetDuration(t *testing.T) {
	e := &EnvService{}
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Second},
		{"250", 250 * time.Millisecond},
		{"1m30s", 90 * time.Second},
		{"soon", time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv("AUTOFLOW_TEST_DURATION", tt.raw)
			assert.Equal(t, tt.want, e.GetDuration("AUTOFLOW_TEST_DURATION", time.Second))
		})
	}
}
