// Package sshrunner executes single commands on remote targets over SSH.
package sshrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

// Options configures a Runner.
type Options struct {
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	// KnownHostsFile enables host key verification. When empty every host key
	// is accepted and a warning is logged once.
	KnownHostsFile string
	Logger         ports.Logger
}

// Runner implements ports.RemoteRunner. Every Run opens and closes its own
// connection, so concurrent calls never share transport state.
type Runner struct {
	connectTimeout  time.Duration
	commandTimeout  time.Duration
	hostKeyCallback ssh.HostKeyCallback
	logger          ports.Logger
}

// New builds a Runner from options.
func New(opts Options) (*Runner, error) {
	r := &Runner{
		connectTimeout: opts.ConnectTimeout,
		commandTimeout: opts.CommandTimeout,
		logger:         opts.Logger,
	}
	if r.connectTimeout <= 0 {
		r.connectTimeout = domain.DefaultConnectTimeout
	}

	if opts.KnownHostsFile != "" {
		callback, err := knownhosts.New(opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		r.hostKeyCallback = callback
	} else {
		r.hostKeyCallback = ssh.InsecureIgnoreHostKey()
		if r.logger != nil {
			r.logger.Warn("host key verification disabled; set execution.known_hosts to enable it", nil)
		}
	}
	return r, nil
}

// Run executes command on target and blocks until the remote process exits,
// the command timeout elapses, or ctx is cancelled. A non-zero exit is a
// normal result; only transport failures return an error.
func (r *Runner) Run(ctx context.Context, target domain.Target, command string) (domain.ExecutionResult, error) {
	started := time.Now()
	result, err := r.run(ctx, target, command)
	result.DurationMS = time.Since(started).Milliseconds()
	return result, err
}

func (r *Runner) run(ctx context.Context, target domain.Target, command string) (domain.ExecutionResult, error) {
	result := domain.ExecutionResult{Command: command}
	if r.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.commandTimeout)
		defer cancel()
	}

	client, err := r.connect(ctx, target)
	if err != nil {
		connErr := &domain.ConnectionError{Target: target.Identity(), Err: err}
		result.Error = connErr.Error()
		return result, connErr
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return r.dispatchFailure(result, command, fmt.Errorf("open session: %w", err))
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(command); err != nil {
		return r.dispatchFailure(result, command, fmt.Errorf("start: %w", err))
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		// Closing the client unblocks Wait; its copy goroutines finish before it returns.
		client.Close()
		<-done
		result.Output = stdout.String()
		result.Error = stderr.String()
		return r.dispatchFailure(result, command, ctx.Err())
	}

	result.Output = stdout.String()
	result.Error = stderr.String()

	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	switch {
	case waitErr == nil:
		result.ExitCode = domain.IntPtr(0)
	case errors.As(waitErr, &exitErr):
		result.ExitCode = domain.IntPtr(exitErr.ExitStatus())
	case errors.As(waitErr, &missingErr):
		// Remote closed the channel without reporting a status.
	default:
		return r.dispatchFailure(result, command, waitErr)
	}

	if r.logger != nil {
		r.logger.Debug("remote command finished", map[string]interface{}{
			"target":    target.Name,
			"command":   command,
			"exit_code": result.ExitCodeString(),
		})
	}
	return result, nil
}

func (r *Runner) dispatchFailure(result domain.ExecutionResult, command string, err error) (domain.ExecutionResult, error) {
	dispatchErr := &domain.CommandDispatchError{Command: command, Err: err}
	if result.Error == "" {
		result.Error = dispatchErr.Error()
	}
	return result, dispatchErr
}

func (r *Runner) connect(ctx context.Context, target domain.Target) (*ssh.Client, error) {
	auth, err := authMethods(target)
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User:            target.Username,
		Auth:            auth,
		HostKeyCallback: r.hostKeyCallback,
		Timeout:         r.connectTimeout,
	}

	addr := target.Address()
	dialer := net.Dialer{Timeout: r.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	// Bound the handshake by the connect timeout and by ctx.
	deadline := time.Now().Add(r.connectTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func authMethods(target domain.Target) ([]ssh.AuthMethod, error) {
	kind := target.AuthType
	if kind == "" {
		kind = domain.AuthPassword
		if target.PrivateKey != "" {
			kind = domain.AuthPrivateKey
		}
	}

	switch kind {
	case domain.AuthPassword:
		password := target.Password
		return []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		}, nil
	case domain.AuthPrivateKey:
		key := []byte(strings.TrimSpace(target.PrivateKey) + "\n")
		var signer ssh.Signer
		var err error
		if target.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(target.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	default:
		return nil, fmt.Errorf("unsupported auth type %q", kind)
	}
}

var _ ports.RemoteRunner = (*Runner)(nil)
