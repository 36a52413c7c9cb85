package remote

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/Tweska/TildeverseGallery/pkg/config"
	"github.com/Tweska/TildeverseGallery/pkg/errors"
	"github.com/Tweska/TildeverseGallery/pkg/logger"
	"github.com/Tweska/TildeverseGallery/pkg/retry"
)

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'public_html/gallery'`, ShellQuote("public_html/gallery"))
	assert.Equal(t, `'it'\''s'`, ShellQuote("it's"))
}

func TestLocalRunner(t *testing.T) {
	out, err := LocalRunner{}.Run(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	_, err = LocalRunner{}.Run(context.Background(), "echo oops >&2; exit 2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestLocalRunnerWithInput(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.txt")
	err := LocalRunner{}.RunWithInput(context.Background(), "cat > "+ShellQuote(dst), strings.NewReader("payload"))
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := io.WriteString(tw, body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
}

func TestTarUploaderLocal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "gallery.tar.gz")
	writeArchive(t, archive, map[string]string{"A.html": "<html>A</html>", "alice.png": "png"})

	target := filepath.Join(dir, "public html", "gallery")
	u := NewTarUploader(LocalRunner{}, logger.NewNopLogger())
	require.NoError(t, u.Upload(context.Background(), archive, target))

	data, err := os.ReadFile(filepath.Join(target, "A.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>A</html>", string(data))
	assert.FileExists(t, filepath.Join(target, "alice.png"))
}

type recordingShell struct {
	command string
	input   string
	err     error
}

func (s *recordingShell) Run(ctx context.Context, command string) ([]byte, error) {
	s.command = command
	return nil, s.err
}

func (s *recordingShell) RunWithInput(ctx context.Context, command string, stdin io.Reader) error {
	s.command = command
	data, _ := io.ReadAll(stdin)
	s.input = string(data)
	return s.err
}

func TestTarUploaderCommand(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "g.tar.gz")
	require.NoError(t, os.WriteFile(archive, []byte("bytes"), 0644))

	shell := &recordingShell{}
	require.NoError(t, NewTarUploader(shell, logger.NewNopLogger()).Upload(context.Background(), archive, "public_html/gallery"))

	assert.Equal(t, "mkdir -p 'public_html/gallery' && tar -xzf - -C 'public_html/gallery'", shell.command)
	assert.Equal(t, "bytes", shell.input)
}

func TestTarUploaderFailureIsFatal(t *testing.T) {
	u := NewTarUploader(&recordingShell{err: assert.AnError}, logger.NewNopLogger())

	archive := filepath.Join(t.TempDir(), "g.tar.gz")
	require.NoError(t, os.WriteFile(archive, []byte("x"), 0644))

	err := u.Upload(context.Background(), archive, "d")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeUpload))
	assert.True(t, errors.IsFatal(err))

	err = u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing"), "d")
	assert.True(t, errors.Is(err, errors.ErrorTypeUpload))
}

func writeKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestLoadSigner(t *testing.T) {
	signer, err := LoadSigner(writeKey(t, ""), nil)
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())
}

func TestLoadSignerEncrypted(t *testing.T) {
	path := writeKey(t, "hunter2")

	_, err := LoadSigner(path, nil)
	assert.ErrorContains(t, err, "encrypted")

	_, err = LoadSigner(path, func() ([]byte, error) { return []byte("wrong"), nil })
	assert.Error(t, err)

	signer, err := LoadSigner(path, func() ([]byte, error) { return []byte("hunter2"), nil })
	require.NoError(t, err)
	assert.NotNil(t, signer)
}

func TestLoadSignerMissingFile(t *testing.T) {
	_, err := LoadSigner(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestHostKeyCallback(t *testing.T) {
	_, err := hostKeyCallback(config.RemoteConfig{KnownHosts: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	cb, err := hostKeyCallback(config.RemoteConfig{InsecureIgnoreHostKey: true})
	require.NoError(t, err)
	assert.NotNil(t, cb)

	known := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(known, nil, 0600))
	cb, err = hostKeyCallback(config.RemoteConfig{KnownHosts: known})
	require.NoError(t, err)
	assert.NotNil(t, cb)
}

func dialConfig(t *testing.T, addr string, attempts int) config.RemoteConfig {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := net.LookupPort("tcp", port)
	require.NoError(t, err)
	return config.RemoteConfig{
		Host:                  host,
		Port:                  p,
		User:                  "gallery",
		IdentityFile:          writeKey(t, ""),
		InsecureIgnoreHostKey: true,
		Timeout:               2 * time.Second,
		DialAttempts:          attempts,
	}
}

func TestDialConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), dialConfig(t, addr, 1), nil, logger.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestDialRetriesRefusedConnections(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := dialConfig(t, addr, 3)
	cfg.DialBackoff = time.Millisecond

	start := time.Now()
	_, err = Dial(context.Background(), cfg, nil, logger.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDialPolicy(t *testing.T) {
	cfg := config.RemoteConfig{DialAttempts: 4}
	policy := dialPolicy(cfg)
	assert.Equal(t, 4, policy.MaxAttempts)
	assert.IsType(t, &retry.ExponentialBackoff{}, policy.Backoff)

	cfg.DialBackoff = 2 * time.Second
	policy = dialPolicy(cfg)
	require.IsType(t, &retry.ConstantBackoff{}, policy.Backoff)
	assert.Equal(t, 2*time.Second, policy.Backoff.NextDelay(3))
}

func TestDialHandshakeFailureIsNotRetried(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var accepted atomic.Int32
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			c.Close()
		}
	}()

	_, err = Dial(context.Background(), dialConfig(t, ln.Addr().String(), 3), nil, logger.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake")
	assert.Equal(t, int32(1), accepted.Load())
}
