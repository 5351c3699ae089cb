package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Status", "Events"}, [][]string{{"pending", "3"}, {"done"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "pending")
	assert.True(t, strings.HasSuffix(out, "\n"))

	assert.Equal(t, "", renderTable(nil, nil, nil))
}

func TestShouldSkipOpen(t *testing.T) {
	root := newRootCommand()

	find := func(args ...string) *cobra.Command {
		cmd, _, err := root.Find(args)
		require.NoError(t, err)
		return cmd
	}

	assert.True(t, shouldSkipOpen(root))
	assert.True(t, shouldSkipOpen(find("outbox")), "group commands only print help")
	assert.False(t, shouldSkipOpen(find("outbox", "drain")))
	assert.False(t, shouldSkipOpen(find("token", "issue")))
}

func TestWriteExport(t *testing.T) {
	dir := t.TempDir()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	target := filepath.Join(dir, "reports", "students.csv")
	require.NoError(t, writeExport(cmd, target, "ignored.csv", []byte("a,b\n")))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
	assert.Contains(t, out.String(), "Wrote "+target+" (4 B)")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", formatScore(0, 0))
	assert.Equal(t, "78.3", formatScore(78.26, 2))
	assert.Equal(t, "never", lastSeen(true, time.Time{}))
	assert.Equal(t, "2 days ago", lastSeen(false, time.Now().Add(-49*time.Hour)))
}
