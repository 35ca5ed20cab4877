package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studyhub_server/pkg/errorx"
)

func newTestLocal(t *testing.T) *LocalBackend {
	t.Helper()
	b := NewLocalBackend(t.TempDir())
	b.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return b
}

func TestLocalStoreOpenDelete(t *testing.T) {
	ctx := context.Background()
	b := newTestLocal(t)

	obj, err := b.Store(ctx, "G1", "notes.txt", strings.NewReader("hello study group"))
	require.NoError(t, err)
	require.Equal(t, "G1/1700000000000-notes.txt", obj.Locator)
	require.EqualValues(t, len("hello study group"), obj.Size)
	require.True(t, strings.HasPrefix(obj.MimeType, "text/plain"))

	content, err := b.Open(ctx, obj.Locator)
	require.NoError(t, err)
	data, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	require.NoError(t, content.Body.Close())
	require.Equal(t, "hello study group", string(data))
	require.Empty(t, content.RedirectURL)

	require.NoError(t, b.Delete(ctx, obj.Locator))
	// 再删一次同样成功
	require.NoError(t, b.Delete(ctx, obj.Locator))

	_, err = b.Open(ctx, obj.Locator)
	require.Error(t, err)
	require.True(t, errorx.IsNotFound(err))
}

func TestLocalStoreSameMillisecondDoesNotCollide(t *testing.T) {
	ctx := context.Background()
	b := newTestLocal(t)

	first, err := b.Store(ctx, "G1", "a.pdf", bytes.NewReader([]byte("one")))
	require.NoError(t, err)
	second, err := b.Store(ctx, "G1", "a.pdf", bytes.NewReader([]byte("two")))
	require.NoError(t, err)
	require.NotEqual(t, first.Locator, second.Locator)
}

func TestLocalStoreSanitizesName(t *testing.T) {
	ctx := context.Background()
	b := newTestLocal(t)

	obj, err := b.Store(ctx, "G1", "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	require.Equal(t, "G1/1700000000000-passwd", obj.Locator)

	_, err = os.Stat(filepath.Join(b.root, "G1", "1700000000000-passwd"))
	require.NoError(t, err)
}

func TestLocalRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	b := newTestLocal(t)

	for _, locator := range []string{"../secret", "G1/../x", "G1", "/etc", "G1/a/b"} {
		_, err := b.Open(ctx, locator)
		require.Error(t, err, locator)
		require.Equal(t, errorx.CodeInvalidParam, errorx.GetCode(err), locator)
	}
}

func TestFileNameOf(t *testing.T) {
	require.Equal(t, "report-final.pdf", FileNameOf("G1/1700000000000-report-final.pdf"))
	require.Equal(t, "", FileNameOf("bad"))
}
