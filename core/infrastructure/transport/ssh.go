package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const readBufferSize = 4096

// SSHDriver drives one interactive shell over SSH. Reads poll with
// short deadlines so context cancellation is honored mid-read.
type SSHDriver struct {
	params  DialParams
	profile vendorProfile

	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	reader  *bufio.Reader
	netConn net.Conn
}

// NewSSHDriver builds a driver for the variant matching the dial
// parameters.
func NewSSHDriver(params DialParams) *SSHDriver {
	return &SSHDriver{
		params:  params,
		profile: profileFor(SelectVariant(params.Brand, params.Platform)),
	}
}

// Open dials, authenticates, requests a PTY shell, elevates privilege
// when an enable secret is present and disables output paging.
func (d *SSHDriver) Open(ctx context.Context) error {
	if d.IsAlive() {
		return nil
	}
	port := d.params.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(d.params.Host, strconv.Itoa(port))

	sshConfig := &ssh.ClientConfig{
		User:            d.params.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(d.params.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.params.socketTimeout(),
	}

	dialer := &net.Dialer{Timeout: d.params.socketTimeout()}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(rawConn, addr, sshConfig)
	if err != nil {
		rawConn.Close()
		return fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(clientConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		rawConn.Close()
		return fmt.Errorf("ssh session on %s: %w", addr, err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 9600,
		ssh.TTY_OP_OSPEED: 9600,
	}
	if err := session.RequestPty("vt100", 80, 40, modes); err != nil {
		session.Close()
		client.Close()
		rawConn.Close()
		return fmt.Errorf("request pty on %s: %w", addr, err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		rawConn.Close()
		return fmt.Errorf("stdin pipe on %s: %w", addr, err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		rawConn.Close()
		return fmt.Errorf("stdout pipe on %s: %w", addr, err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		rawConn.Close()
		return fmt.Errorf("start shell on %s: %w", addr, err)
	}

	d.client = client
	d.session = session
	d.stdin = stdin
	d.reader = bufio.NewReader(stdout)
	d.netConn = rawConn

	if err := d.login(ctx); err != nil {
		d.Close()
		return err
	}
	return nil
}

func (d *SSHDriver) login(ctx context.Context) error {
	initial, err := d.readUntilPrompt(ctx, d.params.transportTimeout())
	if err != nil {
		return fmt.Errorf("initial prompt on %s: %w", d.params.Host, err)
	}

	// Cisco-style devices land in user mode; elevate when a secret is
	// available and the prompt is still the unprivileged one.
	if d.params.EnableSecret != "" && !strings.Contains(lastLine(initial), "#") {
		if err := d.write("enable\n"); err != nil {
			return fmt.Errorf("send enable on %s: %w", d.params.Host, err)
		}
		if _, err := d.readUntilPattern(ctx, promptPassword, d.params.socketTimeout()); err != nil {
			return fmt.Errorf("enable password prompt on %s: %w", d.params.Host, err)
		}
		if err := d.write(d.params.EnableSecret + "\n"); err != nil {
			return fmt.Errorf("send enable secret on %s: %w", d.params.Host, err)
		}
		if _, err := d.readUntilPrompt(ctx, d.params.socketTimeout()); err != nil {
			return fmt.Errorf("privileged prompt on %s: %w", d.params.Host, err)
		}
	}

	if err := d.write(d.profile.commands.DisablePaging + "\n"); err != nil {
		return fmt.Errorf("disable paging on %s: %w", d.params.Host, err)
	}
	if _, err := d.readUntilPrompt(ctx, d.params.socketTimeout()); err != nil {
		return fmt.Errorf("prompt after paging off on %s: %w", d.params.Host, err)
	}
	return nil
}

// Send runs one command and returns its output without the echo and
// trailing prompt lines.
func (d *SSHDriver) Send(ctx context.Context, command string) (string, error) {
	if !d.IsAlive() {
		return "", ErrNotConnected
	}
	if err := d.write(command + "\n"); err != nil {
		return "", fmt.Errorf("send %q to %s: %w", command, d.params.Host, err)
	}
	output, err := d.readUntilPrompt(ctx, d.params.socketTimeout())
	if err != nil {
		return "", fmt.Errorf("output of %q from %s: %w", command, d.params.Host, err)
	}
	return stripEcho(output), nil
}

// Close tears the session down. Safe to call repeatedly.
func (d *SSHDriver) Close() {
	if d.session != nil {
		d.session.Close()
		d.session = nil
	}
	if d.client != nil {
		d.client.Close()
		d.client = nil
	}
	if d.netConn != nil {
		d.netConn.Close()
		d.netConn = nil
	}
	d.stdin = nil
	d.reader = nil
}

func (d *SSHDriver) IsAlive() bool {
	return d.session != nil && d.client != nil
}

func (d *SSHDriver) write(data string) error {
	_, err := d.stdin.Write([]byte(data))
	return err
}

func (d *SSHDriver) readUntilPrompt(ctx context.Context, timeout time.Duration) (string, error) {
	return d.readLoop(ctx, timeout, func(output string) bool {
		return promptReached(output, d.profile.promptSuffixes)
	})
}

func (d *SSHDriver) readUntilPattern(ctx context.Context, pattern string, timeout time.Duration) (string, error) {
	return d.readLoop(ctx, timeout, func(output string) bool {
		return strings.Contains(output, pattern)
	})
}

func (d *SSHDriver) readLoop(ctx context.Context, timeout time.Duration, done func(string) bool) (string, error) {
	buffer := make([]byte, readBufferSize)
	var output strings.Builder
	output.Grow(readBufferSize)
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return output.String(), err
		}
		if d.netConn != nil {
			_ = d.netConn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		}

		n, err := d.reader.Read(buffer)
		if n > 0 {
			output.Write(buffer[:n])
			if done(output.String()) {
				return output.String(), nil
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if time.Now().After(deadline) {
					return output.String(), fmt.Errorf("timeout after %s waiting for prompt", timeout)
				}
				continue
			}
			return output.String(), fmt.Errorf("read: %w", err)
		}
		if time.Now().After(deadline) {
			return output.String(), fmt.Errorf("timeout after %s waiting for prompt", timeout)
		}
	}
}

func lastLine(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
