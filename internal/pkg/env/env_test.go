package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvPrefersLoadedFile(t *testing.T) {
	t.Setenv("TRACKFOX_TEST_KEY", "from-os")
	Env = map[string]string{"TRACKFOX_TEST_KEY": "from-file"}
	defer func() { Env = nil }()

	assert.Equal(t, "from-file", GetEnv("TRACKFOX_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("TRACKFOX_TEST_MISSING", "def"))

	merged := Merged()
	assert.Equal(t, "from-file", merged["TRACKFOX_TEST_KEY"])
}

func TestSetupEnvFileWithoutFile(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	assert.NoError(t, os.Chdir(filepath.Join(dir)))

	assert.False(t, SetupEnvFile())
	assert.NotNil(t, Env)
}
