package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strconv"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/joseph-ayodele/gvb-ingest/internal/common"
)

// Source is a remote file tree.
type Source interface {
	// List returns the paths of all regular files below the root.
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// SFTP is a Source on an SFTP server.
type SFTP struct {
	client *sftp.Client
	conn   *ssh.Client // nil when the client runs over a pipe
	root   string
	log    *slog.Logger
}

// DialSFTP connects with password authentication. The host key is checked
// against cfg.KnownHosts unless cfg.InsecureIgnoreHostKey is set.
func DialSFTP(ctx context.Context, cfg common.FTPConfig, logger *slog.Logger) (*SFTP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hostKey, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}
	sshCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout,
	}

	addr := net.JoinHostPort(cfg.URL, strconv.Itoa(cfg.Port))
	d := net.Dialer{Timeout: cfg.Timeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		logger.Error("sftp dial failed", "addr", addr, "err", err)
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(nc, addr, sshCfg)
	if err != nil {
		_ = nc.Close()
		logger.Error("ssh handshake failed", "addr", addr, "err", err)
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	conn := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("start sftp session: %w", err)
	}
	logger.Info("connected to sftp server", "addr", addr, "user", cfg.Username)
	s := NewSFTP(client, cfg.Root, logger)
	s.conn = conn
	return s, nil
}

// NewSFTP wraps an established client. root defaults to "/".
func NewSFTP(client *sftp.Client, root string, logger *slog.Logger) *SFTP {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		root = "/"
	}
	return &SFTP{client: client, root: root, log: logger}
}

func hostKeyCallback(cfg common.FTPConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(cfg.KnownHosts)
	if err != nil {
		return nil, common.NewAppError(common.CodeConfig, "read known_hosts", err)
	}
	return cb, nil
}

func (s *SFTP) List(ctx context.Context) ([]string, error) {
	var paths []string
	w := s.client.Walk(s.root)
	for w.Step() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.Err(); err != nil {
			if w.Path() == s.root {
				return nil, fmt.Errorf("walk %s: %w", s.root, err)
			}
			s.log.Warn("skipping unreadable remote path", "path", w.Path(), "err", err)
			continue
		}
		if w.Stat().Mode().IsRegular() {
			paths = append(paths, w.Path())
		}
	}
	sort.Strings(paths)
	s.log.Debug("remote tree listed", "root", s.root, "files", len(paths))
	return paths, nil
}

func (s *SFTP) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.client.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open remote %s: %w", path, err)
	}
	return f, nil
}

func (s *SFTP) Close() error {
	err := s.client.Close()
	if s.conn != nil {
		err = errors.Join(err, s.conn.Close())
	}
	return err
}
