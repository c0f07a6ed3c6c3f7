package world

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPath(t *testing.T) {
	t.Setenv("LV2_TEST_ROOT", "/opt/audio")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	sep := string(os.PathListSeparator)
	got := SplitPath("~/.lv2" + sep + sep + "$LV2_TEST_ROOT/lv2" + sep + " /usr/lib/lv2 ")
	assert.Equal(t, []string{
		home + "/.lv2",
		"/opt/audio/lv2",
		"/usr/lib/lv2",
	}, got)
}

func TestSearchPath(t *testing.T) {
	t.Setenv(PathEnv, "/a"+string(os.PathListSeparator)+"/b")
	assert.Equal(t, []string{"/a", "/b"}, SearchPath())

	t.Setenv(PathEnv, "")
	assert.Equal(t, DefaultSearchPath(), SearchPath())
}

func TestDefaultSearchPath(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux layout")
	}
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, ".lv2"), "/usr/local/lib/lv2", "/usr/lib/lv2"}, DefaultSearchPath())
}

func TestExpandPercent(t *testing.T) {
	t.Setenv("LV2_TEST_DIR", `C:\Audio`)
	assert.Equal(t, `C:\Audio\LV2`, expandPercent(`%LV2_TEST_DIR%\LV2`))
	assert.Equal(t, "50%", expandPercent("50%"))
}
