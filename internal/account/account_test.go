package account

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/cloudwaves/internal/catalog"
)

func newTestFile(t *testing.T) *File {
	t.Helper()
	return NewFile(filepath.Join(t.TempDir(), "cloudwaves", accountFileName))
}

func TestFile_LoadMissing(t *testing.T) {
	f := newTestFile(t)

	creds, err := f.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestFile_SaveLoadDelete(t *testing.T) {
	f := newTestFile(t)
	want := catalog.Credentials{Phone: true, Account: "13800000000", Password: "secret"}

	require.NoError(t, f.Save(want))

	info, err := os.Stat(f.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := f.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	require.NoError(t, f.Delete())
	require.NoError(t, f.Delete(), "deleting twice is fine")
	got, err = f.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFile_LoadMalformed(t *testing.T) {
	f := newTestFile(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.Path()), 0o700))

	for _, content := range []string{"{not json", `{"phone":false}`} {
		require.NoError(t, os.WriteFile(f.Path(), []byte(content), 0o600))
		_, err := f.Load()
		assert.Error(t, err, "content %q", content)
	}
}

func TestManager_RestoreMalformedIsEmptyState(t *testing.T) {
	f := newTestFile(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.Path()), 0o700))
	require.NoError(t, os.WriteFile(f.Path(), []byte("garbage"), 0o600))

	m := NewManager(f, catalog.NewMemory(), true, nil)
	require.NoError(t, m.Restore(context.Background()))
	assert.False(t, m.SignedIn())
}

func TestManager_RestoreWithAutoCheck(t *testing.T) {
	f := newTestFile(t)
	require.NoError(t, f.Save(catalog.Credentials{Account: "me@example.com", Password: "pw"}))

	remote := catalog.NewMemory()
	m := NewManager(f, remote, true, nil)
	require.NoError(t, m.Restore(context.Background()))

	assert.True(t, m.SignedIn())
	assert.Equal(t, "me@example.com", m.Profile().Nickname)
	assert.Equal(t, 1, remote.SigninCount())
}

func TestManager_RestoreWithoutAutoCheck(t *testing.T) {
	f := newTestFile(t)
	require.NoError(t, f.Save(catalog.Credentials{Account: "me@example.com", Password: "pw"}))

	remote := catalog.NewMemory()
	m := NewManager(f, remote, false, nil)
	require.NoError(t, m.Restore(context.Background()))

	assert.True(t, m.SignedIn())
	assert.Equal(t, 0, remote.SigninCount())
}

func TestManager_SignInSavesAsync(t *testing.T) {
	f := newTestFile(t)
	m := NewManager(f, catalog.NewMemory(), false, nil)
	creds := catalog.Credentials{Account: "me@example.com", Password: "pw"}

	require.NoError(t, m.SignIn(context.Background(), creds))
	assert.True(t, m.SignedIn())

	require.Eventually(t, func() bool {
		got, err := f.Load()
		return err == nil && got != nil && *got == creds
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_SignInFailureDoesNotSave(t *testing.T) {
	f := newTestFile(t)
	m := NewManager(f, catalog.NewMemory(), false, nil)

	err := m.SignIn(context.Background(), catalog.Credentials{Account: "", Password: ""})
	require.Error(t, err)
	assert.False(t, m.SignedIn())

	m.Flush()
	_, statErr := os.Stat(f.Path())
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestManager_FlushWritesPending(t *testing.T) {
	f := newTestFile(t)
	m := NewManager(f, catalog.NewMemory(), false, nil)
	creds := catalog.Credentials{Account: "a", Password: "b"}

	m.SaveAsync(creds)
	m.Flush()

	got, err := f.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, creds, *got)
}

func TestManager_SignOutRemovesFile(t *testing.T) {
	f := newTestFile(t)
	m := NewManager(f, catalog.NewMemory(), false, nil)
	ctx := context.Background()

	require.NoError(t, m.SignIn(ctx, catalog.Credentials{Account: "a", Password: "b"}))
	m.Flush()
	m.SetLiked("1", true)

	require.NoError(t, m.SignOut(ctx))

	assert.False(t, m.SignedIn())
	assert.Nil(t, m.Profile())
	assert.False(t, m.IsLiked("1"))
	_, err := os.Stat(f.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestManager_DailyCheckNeedsAccount(t *testing.T) {
	m := NewManager(newTestFile(t), catalog.NewMemory(), false, nil)

	err := m.DailyCheck(context.Background())
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestManager_Likes(t *testing.T) {
	remote := catalog.NewMemory()
	remote.AddTrack(catalog.Track{ID: "1"}, nil)
	remote.AddTrack(catalog.Track{ID: "2"}, nil)
	ctx := context.Background()
	_, err := remote.SetLikeStatus(ctx, "2", true)
	require.NoError(t, err)

	m := NewManager(newTestFile(t), remote, false, nil)
	require.NoError(t, m.SignIn(ctx, catalog.Credentials{Account: "a", Password: "b"}))

	assert.False(t, m.IsLiked("1"))
	assert.True(t, m.IsLiked("2"))

	m.SetLiked("1", true)
	m.SetLiked("2", false)
	assert.True(t, m.IsLiked("1"))
	assert.False(t, m.IsLiked("2"))
}
