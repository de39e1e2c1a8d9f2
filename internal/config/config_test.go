/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watches.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeConfig(t, `
pid_dir: /run/xywatchd
watches:
  - name: web
    start: ["/usr/bin/web", "--port", "8080"]
    dir: /srv/web
  - name: worker
    start: ["/usr/bin/worker"]
    stop_command: ["/usr/bin/worker", "--drain"]
`)

	pidDir, specs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/run/xywatchd", pidDir)
	require.Len(t, specs, 2)

	assert.Equal(t, "web", specs[0].Name)
	assert.Equal(t, []string{"/usr/bin/web", "--port", "8080"}, specs[0].Start)
	assert.Equal(t, "/srv/web", specs[0].Dir)
	assert.Nil(t, specs[0].Uid)
	assert.Nil(t, specs[0].Gid)

	assert.Equal(t, []string{"/usr/bin/worker", "--drain"}, specs[1].StopCommand)
}

func TestLoadResolvesIdentity(t *testing.T) {
	// root/uid 0 exists on any host this suite runs on.
	path := writeConfig(t, `
watches:
  - name: w
    start: ["/bin/true"]
    user: root
`)

	_, specs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.NotNil(t, specs[0].Uid)
	assert.Equal(t, uint32(0), *specs[0].Uid)
	assert.Equal(t, "root", specs[0].User)
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	path := writeConfig(t, `
watches:
  - name: w
    start: ["/bin/true"]
  - name: w
    start: ["/bin/false"]
`)

	_, _, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate watch name")
}

func TestLoadRejectsEmptyStart(t *testing.T) {
	path := writeConfig(t, `
watches:
  - name: w
`)

	_, _, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty start command")
}

func TestLoadRejectsEmptyName(t *testing.T) {
	path := writeConfig(t, `
watches:
  - start: ["/bin/true"]
`)

	_, _, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadUnknownUser(t *testing.T) {
	path := writeConfig(t, `
watches:
  - name: w
    start: ["/bin/true"]
    user: no-such-user-xywatchd
`)

	_, _, err := Load(path)
	require.Error(t, err)
}
