package imap

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedServer speaks just enough IMAP to drive the gateway through
// login, select and IDLE, with knobs the memory backend does not offer.
type scriptedServer struct {
	stallCapability bool
	pushDuringIdle  []string
}

func startScriptedServer(t *testing.T, l net.Listener, srv scriptedServer) string {
	t.Helper()

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn)
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
	})

	return l.Addr().String()
}

func (s scriptedServer) serve(conn net.Conn) {
	defer conn.Close()

	write := func(lines ...string) bool {
		for _, line := range lines {
			if _, err := io.WriteString(conn, line+"\r\n"); err != nil {
				return false
			}
		}
		return true
	}

	if !write("* OK [CAPABILITY IMAP4rev1 IDLE] ready") {
		return
	}

	r := bufio.NewReader(conn)
	idleTag := ""
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		if idleTag != "" && strings.EqualFold(line, "DONE") {
			write(idleTag + " OK IDLE terminated")
			idleTag = ""
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		tag, cmd := fields[0], strings.ToUpper(fields[1])

		switch cmd {
		case "CAPABILITY":
			if s.stallCapability {
				continue
			}
			write("* CAPABILITY IMAP4rev1 IDLE", tag+" OK CAPABILITY completed")
		case "LOGIN":
			write(tag + " OK LOGIN completed")
		case "SELECT":
			write(`* FLAGS (\Seen)`, "* 0 EXISTS", "* 0 RECENT", tag+" OK [READ-WRITE] SELECT completed")
		case "IDLE":
			idleTag = tag
			write("+ idling")
			write(s.pushDuringIdle...)
		case "LOGOUT":
			write("* BYE logging out", tag+" OK LOGOUT completed")
			return
		default:
			write(tag + " BAD unknown command")
		}
	}
}

func listenLocal(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return l
}

// listenTLS returns a listener serving httptest's certificate, which is
// valid for example.com, and a pool that trusts it.
func listenTLS(t *testing.T) (net.Listener, *x509.CertPool) {
	t.Helper()

	ts := httptest.NewTLSServer(http.NotFoundHandler())
	cert := ts.TLS.Certificates[0]
	pool := x509.NewCertPool()
	pool.AddCert(ts.Certificate())
	ts.Close()

	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	require.NoError(t, err)
	return l, pool
}

// startSilentServer accepts connections and never writes to them.
func startSilentServer(t *testing.T) string {
	t.Helper()

	l := listenLocal(t)
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	return l.Addr().String()
}
