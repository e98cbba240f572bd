package taxonomy

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrint(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, Print(&out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Greater(t, len(lines), 10)
	assert.True(t, strings.HasPrefix(lines[0], "TRACK"))

	var f2f, marathon []string
	for _, l := range lines[1:] {
		fields := strings.Fields(l)
		switch fields[1] {
		case "FIRST_2_FINISH":
			f2f = append(f2f, l)
		case "MARATHON_MATCH":
			marathon = append(marathon, l)
		}
	}
	require.Len(t, f2f, 2, "task flag forks the mapping")
	assert.Contains(t, f2f[1], "yes")
	assert.Contains(t, f2f[1], "Task")
	assert.Len(t, marathon, 1)
}
