package runner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/clustertools/certauth/internal/retry"
)

// SSHTarget executes the same operations as LocalTarget on a remote host
// through an ssh command channel. Connections are established lazily and
// reused for the rest of the run; dial failures are retried with backoff,
// rejected credentials are not.
type SSHTarget struct {
	host   string
	user   string
	port   int
	signer ssh.Signer

	// DialTimeout bounds a single dial attempt.
	DialTimeout time.Duration

	client *ssh.Client
}

// NewSSH returns a Target for a remote host authenticated by private key.
func NewSSH(host, user string, privateKey []byte) (*SSHTarget, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &SSHTarget{
		host:        host,
		user:        user,
		port:        22,
		signer:      signer,
		DialTimeout: 10 * time.Second,
	}, nil
}

func (t *SSHTarget) Name() string { return t.host }

func (t *SSHTarget) Local() bool { return false }

// Close releases the cached connection, if any.
func (t *SSHTarget) Close() error {
	if t.client == nil {
		return nil
	}
	client := t.client
	t.client = nil
	return client.Close()
}

func (t *SSHTarget) connect(ctx context.Context) (*ssh.Client, error) {
	if t.client != nil {
		return t.client, nil
	}

	config := &ssh.ClientConfig{
		User:            t.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(t.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec G106 -- cluster-internal hosts
		Timeout:         t.DialTimeout,
	}

	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	err := retry.Do(ctx, func() error {
		client, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			if strings.Contains(err.Error(), "unable to authenticate") {
				return retry.Permanent(err)
			}
			return err
		}
		t.client = client
		return nil
	}, retry.WithMaxRetries(3), retry.WithInitialDelay(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return t.client, nil
}

func (t *SSHTarget) Run(ctx context.Context, command string) (string, int, error) {
	client, err := t.connect(ctx)
	if err != nil {
		return "", -1, err
	}

	session, err := client.NewSession()
	if err != nil {
		// Connection may have gone stale between commands; drop it so
		// the next call redials.
		t.Close()
		return "", -1, fmt.Errorf("failed to create session on %s: %w", t.host, err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		ch <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		// Best effort; the remote command keeps the session until it
		// exits, so tear the connection down.
		t.Close()
		return "", -1, fmt.Errorf("command on %s cancelled: %w", t.host, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			var exitErr *ssh.ExitError
			if errors.As(r.err, &exitErr) {
				return string(r.out), exitErr.ExitStatus(), nil
			}
			return string(r.out), -1, fmt.Errorf("failed to execute on %s: %w", t.host, r.err)
		}
		return string(r.out), 0, nil
	}
}

// runChecked runs a command and converts a non-zero exit into an error.
func (t *SSHTarget) runChecked(ctx context.Context, command string) (string, error) {
	out, code, err := t.Run(ctx, command)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("%s exited %d on %s: %s", command, code, t.host, strings.TrimSpace(out))
	}
	return out, nil
}

func (t *SSHTarget) ReadFile(ctx context.Context, path string) ([]byte, error) {
	// base64 keeps arbitrary file bytes intact across the channel.
	out, err := t.runChecked(ctx, fmt.Sprintf("base64 < %s", shellQuote(path)))
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(out, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s from %s: %w", path, t.host, err)
	}
	return data, nil
}

func (t *SSHTarget) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	// Redirection truncates in place, so an existing file keeps its
	// owner and mode. chmod applies only on creation.
	cmd := fmt.Sprintf(
		"if [ -e %[1]s ]; then echo %[2]s | base64 -d > %[1]s; else echo %[2]s | base64 -d > %[1]s && chmod %[3]o %[1]s; fi",
		shellQuote(path), encoded, perm.Perm())
	_, err := t.runChecked(ctx, cmd)
	return err
}

func (t *SSHTarget) FileExists(ctx context.Context, path string) (bool, error) {
	_, code, err := t.Run(ctx, fmt.Sprintf("test -e %s", shellQuote(path)))
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

func (t *SSHTarget) Readlink(ctx context.Context, path string) (string, bool, error) {
	_, code, err := t.Run(ctx, fmt.Sprintf("test -L %s", shellQuote(path)))
	if err != nil {
		return "", false, err
	}
	if code != 0 {
		return "", false, nil
	}
	out, err := t.runChecked(ctx, fmt.Sprintf("readlink %s", shellQuote(path)))
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(out), true, nil
}

func (t *SSHTarget) CopyFile(ctx context.Context, src, dst string) error {
	_, err := t.runChecked(ctx, fmt.Sprintf("cp -p %s %s", shellQuote(src), shellQuote(dst)))
	return err
}

func (t *SSHTarget) Glob(ctx context.Context, pattern string) ([]string, error) {
	// The pattern itself must stay unquoted for the remote shell to
	// expand it; quote only up to the first metacharacter.
	out, code, err := t.Run(ctx, fmt.Sprintf("ls -1d %s 2>/dev/null", quoteGlob(pattern)))
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, nil
	}
	var matches []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			matches = append(matches, line)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// shellQuote single-quotes s for safe interpolation into a shell command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// quoteGlob quotes everything before the first glob metacharacter and
// leaves the rest for shell expansion.
func quoteGlob(pattern string) string {
	i := strings.IndexAny(pattern, "*?[")
	if i < 0 {
		return shellQuote(pattern)
	}
	return shellQuote(pattern[:i]) + pattern[i:]
}
