package remote

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/gvb-ingest/internal/common"
)

type pipeConn struct {
	io.Reader
	io.WriteCloser
}

// newPipeSFTP serves the local filesystem through an in-process sftp server.
func newPipeSFTP(t *testing.T, root string) *SFTP {
	t.Helper()
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()

	server, err := sftp.NewServer(pipeConn{Reader: sr, WriteCloser: sw})
	require.NoError(t, err)
	served := make(chan struct{})
	go func() {
		defer close(served)
		// closing the server's write end lets the client's reader finish
		defer sw.Close()
		_ = server.Serve()
	}()

	client, err := sftp.NewClientPipe(cr, cw)
	require.NoError(t, err)
	s := NewSFTP(client, root, nil)
	t.Cleanup(func() {
		_ = s.Close()
		<-served
	})
	return s
}

func TestSFTPListAndOpen(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2024", "04"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "2024", "04", "b.csv"), []byte("x;y\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.csv"), []byte("hello"), 0o644))

	s := newPipeSFTP(t, root)
	ctx := context.Background()

	paths, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.ToSlash(filepath.Join(root, "2024", "04", "b.csv")),
		filepath.ToSlash(filepath.Join(root, "a.csv")),
	}, paths)

	rc, err := s.Open(ctx, paths[1])
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSFTPCloseReturns(t *testing.T) {
	s := newPipeSFTP(t, t.TempDir())
	_, err := s.List(context.Background())
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestSFTPListMissingRoot(t *testing.T) {
	s := newPipeSFTP(t, filepath.Join(t.TempDir(), "missing"))
	_, err := s.List(context.Background())
	require.Error(t, err)
}

func TestDialSFTPConfigErrors(t *testing.T) {
	_, err := DialSFTP(context.Background(), common.FTPConfig{URL: "localhost", Port: 22, Username: "gvb"}, nil)
	require.Error(t, err)
	assert.Equal(t, common.CodeConfig, common.CodeOf(err))

	cfg := common.FTPConfig{URL: "localhost", Port: 22, Username: "gvb", KnownHosts: filepath.Join(t.TempDir(), "nope")}
	_, err = DialSFTP(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, common.CodeConfig, common.CodeOf(err))
}
