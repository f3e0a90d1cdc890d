package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_WritesPIDAndReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milda_bot.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, lock.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquire_SecondLaunchRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milda_bot.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquire_LiveForeignProcessRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milda_bot.lock")
	// The parent of the test binary is alive for the duration of the test.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o600))

	_, err := Acquire(path)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquire_StaleLockTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milda_bot.lock")
	require.NoError(t, os.WriteFile(path, []byte("99999999"), 0o600))

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAcquire_GarbageLockTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milda_bot.lock")
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o600))

	lock, err := Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, lock.Release())
}

func TestRelease_LeavesForeignLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milda_bot.lock")
	lock, err := Acquire(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("1"), 0o600))
	require.NoError(t, lock.Release())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
