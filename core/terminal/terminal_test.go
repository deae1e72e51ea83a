package terminal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPty(t *testing.T) *os.File {
	t.Helper()

	ptm, pts, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	t.Cleanup(func() {
		pts.Close()
		ptm.Close()
	})
	return pts
}

func TestIsInteractive(t *testing.T) {
	pts := openPty(t)
	assert.True(t, IsInteractive(int(pts.Fd())))

	regular, err := os.Create(filepath.Join(t.TempDir(), "file"))
	require.NoError(t, err)
	defer regular.Close()
	assert.False(t, IsInteractive(int(regular.Fd())))
}

func TestInitNonInteractive(t *testing.T) {
	regular, err := os.Create(filepath.Join(t.TempDir(), "file"))
	require.NoError(t, err)
	defer regular.Close()

	term, err := Init(int(regular.Fd()))
	require.NoError(t, err)
	assert.False(t, term.Interactive())
	assert.Equal(t, 0, term.ProcessGroup())
	assert.NoError(t, term.Restore())
}

func TestInitNotControllingTerminal(t *testing.T) {
	// A fresh pty isn't this process's controlling terminal, so taking control
	// of it has to fail rather than be silently skipped.
	pts := openPty(t)

	_, err := Init(int(pts.Fd()))
	assert.Error(t, err)
}
