package telnet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/portal/internal/testutil"
)

func startAcceptor(t *testing.T) *Acceptor {
	t.Helper()
	cfg := AcceptorConfig{
		Addr: "127.0.0.1:0",
		Conn: testConnConfig(),
	}
	acceptor := NewAcceptor(cfg, zap.NewNop())

	go func() {
		if err := acceptor.ListenAndServe(); err != nil {
			t.Errorf("acceptor: %v", err)
		}
	}()
	require.Eventually(t, func() bool {
		return acceptor.Addr() != ""
	}, 5*time.Second, 10*time.Millisecond)

	t.Cleanup(acceptor.Stop)
	return acceptor
}

func TestAcceptor_NegotiatesOnAccept(t *testing.T) {
	acceptor := startAcceptor(t)

	client := testutil.NewTelnetClient(t, acceptor.Addr())
	out := client.ReadUntil([]byte{IAC, WILL, OptLinemode}, 5*time.Second)
	assert.Contains(t, string(out), string([]byte{IAC, WILL, OptGMCP}))
}

func TestAcceptor_DeliversLinkForSession(t *testing.T) {
	acceptor := startAcceptor(t)

	client := testutil.NewTelnetClient(t, acceptor.Addr())
	client.ReadUntil([]byte{IAC, WILL, OptLinemode}, 5*time.Second)

	// the negotiation deadline releases the link even with a silent peer
	deadline := time.After(5 * time.Second)
	for {
		select {
		case link := <-Links():
			assert.NotNil(t, link.RemoteAddr)
			assert.Equal(t, "telnet", link.ClientData.ClientProtocol)
			return
		case <-deadline:
			t.Fatal("no link delivered")
		}
	}
}

func TestAcceptor_RequiresTLSConfigForTLSListener(t *testing.T) {
	acceptor := NewAcceptor(AcceptorConfig{
		Addr:    "127.0.0.1:0",
		TLSAddr: "127.0.0.1:0",
		Conn:    testConnConfig(),
	}, zap.NewNop())

	err := acceptor.ListenAndServe()
	assert.Error(t, err)
}
