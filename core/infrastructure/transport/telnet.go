package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ziutek/telnet"
)

// TelnetDriver drives one CLI session over telnet. Authentication is a
// scripted prompt conversation since telnet has no auth of its own.
type TelnetDriver struct {
	params  DialParams
	variant Variant
	profile vendorProfile
	conn    *telnet.Conn
}

// NewTelnetDriver builds a driver for the variant matching the dial
// parameters.
func NewTelnetDriver(params DialParams) *TelnetDriver {
	variant := SelectVariant(params.Brand, params.Platform)
	return &TelnetDriver{
		params:  params,
		variant: variant,
		profile: profileFor(variant),
	}
}

// Open dials and walks the login prompt sequence.
func (d *TelnetDriver) Open(ctx context.Context) error {
	if d.conn != nil {
		return nil
	}
	port := d.params.Port
	if port == 0 || port == 22 {
		port = 23
	}
	addr := net.JoinHostPort(d.params.Host, strconv.Itoa(port))

	conn, err := telnet.DialTimeout("tcp", addr, d.params.socketTimeout())
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	d.conn = conn

	deadline := time.Now().Add(d.params.transportTimeout())
	for _, prompt := range loginPrompts(d.variant, d.params) {
		if _, err := d.readUntilPattern(ctx, prompt.WaitFor, time.Until(deadline)); err != nil {
			d.Close()
			return fmt.Errorf("login to %s waiting for %q: %w", addr, prompt.WaitFor, err)
		}
		if prompt.SendCmd != "" {
			if _, err := d.conn.Write([]byte(prompt.SendCmd)); err != nil {
				d.Close()
				return fmt.Errorf("login to %s: %w", addr, err)
			}
		}
	}
	return nil
}

// Send runs one command and returns its output without the echo and
// trailing prompt lines.
func (d *TelnetDriver) Send(ctx context.Context, command string) (string, error) {
	if d.conn == nil {
		return "", ErrNotConnected
	}
	if _, err := d.conn.Write([]byte(command + "\n")); err != nil {
		return "", fmt.Errorf("send %q to %s: %w", command, d.params.Host, err)
	}
	output, err := d.readUntilPrompt(ctx, d.params.socketTimeout())
	if err != nil {
		return "", fmt.Errorf("output of %q from %s: %w", command, d.params.Host, err)
	}
	return stripEcho(output), nil
}

// Close drops the connection. Safe to call repeatedly.
func (d *TelnetDriver) Close() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

func (d *TelnetDriver) IsAlive() bool {
	return d.conn != nil
}

func (d *TelnetDriver) readUntilPrompt(ctx context.Context, timeout time.Duration) (string, error) {
	return d.readLoop(ctx, timeout, func(output string) bool {
		return promptReached(output, d.profile.promptSuffixes)
	})
}

func (d *TelnetDriver) readUntilPattern(ctx context.Context, pattern string, timeout time.Duration) (string, error) {
	return d.readLoop(ctx, timeout, func(output string) bool {
		return strings.Contains(output, pattern)
	})
}

func (d *TelnetDriver) readLoop(ctx context.Context, timeout time.Duration, done func(string) bool) (string, error) {
	buffer := make([]byte, readBufferSize)
	var output strings.Builder
	output.Grow(readBufferSize)
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return output.String(), err
		}
		_ = d.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))

		n, err := d.conn.Read(buffer)
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
