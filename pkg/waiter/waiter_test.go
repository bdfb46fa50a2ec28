package waiter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("png"), 0644))
	return path
}

func TestWaitExistingFileReturnsImmediately(t *testing.T) {
	dir := t.TempDir()
	want := touch(t, dir, "tok123_out.png")

	start := time.Now()
	got, err := Wait(context.Background(), Options{Dir: dir, Token: "tok123", Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitTimeout(t *testing.T) {
	dir := t.TempDir()

	start := time.Now()
	_, err := Wait(context.Background(), Options{Dir: dir, Token: "nope", Timeout: time.Second, Interval: 200 * time.Millisecond})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 1500*time.Millisecond)
}

func TestWaitFileAppearsLater(t *testing.T) {
	dir := t.TempDir()
	go func() {
		time.Sleep(150 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "output_ab12cd34_00001_.png"), []byte("png"), 0644)
	}()

	got, err := Wait(context.Background(), Options{Dir: dir, Token: "output_ab12cd34", Timeout: 3 * time.Second, Interval: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "output_ab12cd34_00001_.png"), got)
}

func TestWaitPicksSmallestMatch(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "tok_00003_.png")
	want := touch(t, dir, "tok_00001_.png")
	touch(t, dir, "tok_00002_.png")
	touch(t, dir, "tok_00000_.jpg")
	touch(t, dir, "other_00000_.png")

	got, err := Wait(context.Background(), Options{Dir: dir, Token: "tok", Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWaitTokenIsLiteral(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "tokX_1.png")

	_, err := Wait(context.Background(), Options{Dir: dir, Token: "tok?", Timeout: 10 * time.Millisecond, Interval: 5 * time.Millisecond})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := Wait(ctx, Options{Dir: t.TempDir(), Token: "tok", Timeout: 10 * time.Second, Interval: 20 * time.Millisecond})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitEmptyToken(t *testing.T) {
	_, err := Wait(context.Background(), Options{Dir: t.TempDir(), Timeout: time.Second})
	assert.Error(t, err)
}
