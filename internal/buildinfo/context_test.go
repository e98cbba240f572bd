package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Version(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{name: "nil context", ctx: nil, want: UnknownValue},
		{name: "empty version", ctx: NewContext("", "2023-01-01"), want: UnknownValue},
		{name: "valid version", ctx: NewContext("1.0.0", "2023-01-01"), want: "1.0.0"},
		{name: "pre-release tag", ctx: NewContext("1.0.0-beta.1", "2023-01-01"), want: "1.0.0-beta.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.ctx.Version())
		})
	}
}

func TestContext_BuildDate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, UnknownValue, (*Context)(nil).BuildDate())
	assert.Equal(t, UnknownValue, NewContext("1.0.0", "").BuildDate())
	assert.Equal(t, "2023-01-01T12:00:00Z", NewContext("1.0.0", "2023-01-01T12:00:00Z").BuildDate())
}

func TestContext_RunID(t *testing.T) {
	t.Parallel()

	a, b := NewContext("1.0.0", ""), NewContext("1.0.0", "")
	assert.Len(t, a.RunID(), 36)
	assert.NotEqual(t, a.RunID(), b.RunID())
	assert.Equal(t, UnknownValue, (*Context)(nil).RunID())
}

func TestContext_Names(t *testing.T) {
	t.Parallel()

	c := NewContext("2.1.0", "2026-01-02")
	assert.Equal(t, "challenge-migration/2.1.0", c.UserAgent())
	assert.Equal(t, "challenge-migration@2.1.0", c.Release())
	assert.Equal(t, "challenge-migration 2.1.0 (built 2026-01-02)", c.String())
}
