package crash

import (
	"os"
	"path/filepath"
	"testing"

	"fuzzrunner/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCrashManagerStoresArtifactsByContent(t *testing.T) {
	crashDir := t.TempDir()
	workDir := t.TempDir()

	c, err := newCrashManager(nil, zaptest.NewLogger(t), crashDir)
	require.NoError(t, err)
	go c.start()

	first := filepath.Join(workDir, "crash-1")
	dup := filepath.Join(workDir, "crash-2")
	other := filepath.Join(workDir, "leak-1")
	require.NoError(t, os.WriteFile(first, []byte("boom"), 0644))
	require.NoError(t, os.WriteFile(dup, []byte("boom"), 0644))
	require.NoError(t, os.WriteFile(other, []byte("leak"), 0644))

	target := &types.FuzzTargetSpec{Name: "FUZZ_BasicTypes", CampaignID: "c1"}
	for _, f := range []string{first, dup, other, filepath.Join(workDir, "missing")} {
		c.Submit(types.CrashMessage{CrashFile: f, Target: target})
	}
	c.close()
	<-c.done

	stored, err := os.ReadDir(filepath.Join(crashDir, "c1", "FUZZ_BasicTypes"))
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestCrashManagerDropsAfterClose(t *testing.T) {
	c, err := newCrashManager(nil, zaptest.NewLogger(t), t.TempDir())
	require.NoError(t, err)
	go c.start()
	c.close()
	<-c.done

	assert.NotPanics(t, func() {
		c.Submit(types.CrashMessage{CrashFile: "crash-x", Target: &types.FuzzTargetSpec{Name: "t"}})
	})
	c.close()
}
