// Package testutil provides integration-test helpers.
package testutil

import (
	"bytes"
	"fmt"
	"net"
	"testing"
	"time"
)

// TelnetClient is a protocol-aware telnet test client: it can send raw
// byte sequences (IAC negotiations, subnegotiations) and read until an
// expected byte pattern appears.
type TelnetClient struct {
	conn net.Conn
	t    *testing.T
}

// NewTelnetClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected TelnetClient or fails the test.
func NewTelnetClient(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	client := &TelnetClient{conn: conn, t: t}
	t.Logf("telnet client connected to %s [%s]", addr, time.Since(start))
	return client
}

// SendRaw writes raw bytes to the server.
func (c *TelnetClient) SendRaw(data []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.conn.Write(data); err != nil {
		c.t.Fatalf("sending %d bytes: %v", len(data), err)
	}
}

// SendLine writes a line of text to the server, appending \r\n.
//
// Precondition: text should not contain trailing newline characters.
func (c *TelnetClient) SendLine(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", text); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// ReadUntil reads data until the pattern is found or the timeout fires.
// It returns all data read so far: the match and whatever else arrived
// in the same reads, including bytes after the match.
func (c *TelnetClient) ReadUntil(pattern []byte, timeout time.Duration) []byte {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	var buf bytes.Buffer
	tmp := make([]byte, 1024)
	for {
		n, err := c.conn.Read(tmp)
		if n > 0 {
			buf.Write(tmp[:n])
			if bytes.Contains(buf.Bytes(), pattern) {
				return buf.Bytes()
			}
		}
		if err != nil {
			c.t.Fatalf("reading until % x: got %q, error: %v", pattern, buf.String(), err)
		}
	}
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	c.conn.Close()
}
