package remote

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/Tweska/TildeverseGallery/pkg/config"
	"github.com/Tweska/TildeverseGallery/pkg/logger"
	"github.com/Tweska/TildeverseGallery/pkg/retry"
)

// PassphraseFunc supplies the passphrase of an encrypted identity file
type PassphraseFunc func() ([]byte, error)

// Client is an SSH connection to the tilde server
type Client struct {
	conn   *ssh.Client
	addr   string
	logger logger.Logger
}

// Dial connects to the host described by cfg. passphrase is only consulted
// when the identity file is encrypted and may be nil.
func Dial(ctx context.Context, cfg config.RemoteConfig, passphrase PassphraseFunc, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	signer, err := LoadSigner(cfg.IdentityFile, passphrase)
	if err != nil {
		return nil, err
	}

	hostKeys, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         cfg.Timeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	var conn *ssh.Client
	err = retry.Do(ctx, dialPolicy(cfg), log, func(ctx context.Context) error {
		c, err := connect(ctx, addr, clientCfg, cfg.Timeout)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.InfoWithFields("Connected to remote host", map[string]interface{}{
		"addr": addr,
		"user": cfg.User,
	})

	return &Client{
		conn:   conn,
		addr:   addr,
		logger: log.WithField("component", "ssh"),
	}, nil
}

func dialPolicy(cfg config.RemoteConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.DialAttempts
	if cfg.DialBackoff > 0 {
		policy.Backoff = &retry.ConstantBackoff{Delay: cfg.DialBackoff}
	}
	return policy
}

// connect opens the TCP connection and runs the SSH handshake. Handshake
// failures are permanent; the server answered and refused.
func connect(ctx context.Context, addr string, clientCfg *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if timeout > 0 {
		_ = netConn.SetDeadline(time.Now().Add(timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(netConn, addr, clientCfg)
	if err != nil {
		netConn.Close()
		return nil, retry.Permanent(fmt.Errorf("ssh handshake with %s failed: %w", addr, err))
	}
	_ = netConn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

// LoadSigner reads a private key, asking for a passphrase if it is encrypted
func LoadSigner(path string, passphrase PassphraseFunc) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(pem)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if !stderrors.As(err, &missing) {
		return nil, fmt.Errorf("failed to parse identity file: %w", err)
	}
	if passphrase == nil {
		return nil, fmt.Errorf("identity file %s is encrypted and no passphrase is available", path)
	}

	pass, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get identity passphrase: %w", err)
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, pass)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt identity file: %w", err)
	}
	return signer, nil
}

func hostKeyCallback(cfg config.RemoteConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(cfg.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return cb, nil
}

// Run executes command on the remote host and returns its standard output
func (c *Client) Run(ctx context.Context, command string) ([]byte, error) {
	session, err := c.conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := c.wait(ctx, session, command); err != nil {
		return stdout.Bytes(), commandError(command, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// RunWithInput executes command on the remote host feeding stdin
func (c *Client) RunWithInput(ctx context.Context, command string, stdin io.Reader) error {
	session, err := c.conn.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer session.Close()

	var stderr bytes.Buffer
	session.Stdin = stdin
	session.Stderr = &stderr

	if err := c.wait(ctx, session, command); err != nil {
		return commandError(command, err, stderr.String())
	}
	return nil
}

// wait runs command, closing the session if ctx ends first
func (c *Client) wait(ctx context.Context, session *ssh.Session, command string) error {
	c.logger.DebugWithFields("Running remote command", map[string]interface{}{
		"command": command,
	})

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		return ctx.Err()
	}
}

// Close terminates the connection
func (c *Client) Close() error {
	return c.conn.Close()
}
