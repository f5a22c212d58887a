package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/idlesync/interfaces"
	"github.com/customeros/idlesync/internal/enum"
	idlesync_errors "github.com/customeros/idlesync/internal/errors"
	"github.com/customeros/idlesync/internal/logger"
)

const (
	memoryUser = "username"
	memoryPass = "password"
)

func startMemoryServer(t *testing.T) string {
	t.Helper()

	s := server.New(memory.New())
	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = s.Serve(l)
	}()
	t.Cleanup(func() {
		_ = s.Close()
	})

	return l.Addr().String()
}

func newTestGateway() *Gateway {
	return NewGateway(logger.NewNopLogger(),
		WithDialTimeout(2*time.Second),
		WithLogoutTimeout(2*time.Second),
	)
}

func loginSession(t *testing.T, addr string) interfaces.IMAPSession {
	t.Helper()
	ctx := context.Background()

	conn, err := newTestGateway().Connect(ctx, addr, "127.0.0.1", false)
	require.NoError(t, err)

	sess, err := conn.Login(ctx, memoryUser, memoryPass)
	require.NoError(t, err)
	return sess
}

func TestGateway_SelectAndFetchFlags(t *testing.T) {
	addr := startMemoryServer(t)
	ctx := context.Background()
	sess := loginSession(t, addr)

	require.NoError(t, sess.Select(ctx, "INBOX"))

	flags, err := sess.FetchFlags(ctx, "1:*")
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, uint32(1), flags[0].SeqNum)

	assert.NoError(t, sess.Logout(ctx))
}

func TestGateway_EmptyMailboxSkipsFetch(t *testing.T) {
	addr := startMemoryServer(t)
	ctx := context.Background()
	sess := loginSession(t, addr)

	require.NoError(t, sess.(*session).client.Create("Empty"))
	require.NoError(t, sess.Select(ctx, "Empty"))

	flags, err := sess.FetchFlags(ctx, "1:*")
	require.NoError(t, err)
	assert.NotNil(t, flags)
	assert.Empty(t, flags)
}

func TestGateway_LoginFailure(t *testing.T) {
	addr := startMemoryServer(t)
	ctx := context.Background()

	conn, err := newTestGateway().Connect(ctx, addr, "127.0.0.1", false)
	require.NoError(t, err)

	_, err = conn.Login(ctx, memoryUser, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to login")
	assert.NotContains(t, err.Error(), memoryUser)
	assert.NoError(t, conn.Close())
}

func TestGateway_ConnectFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = newTestGateway().Connect(context.Background(), addr, "127.0.0.1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to")
}

func TestGateway_TLSHandshakeAgainstPlainServer(t *testing.T) {
	addr := startMemoryServer(t)

	_, err := newTestGateway().Connect(context.Background(), addr, "127.0.0.1", true)
	require.Error(t, err)
}

func TestGateway_StepsRequireSelectedMailbox(t *testing.T) {
	addr := startMemoryServer(t)
	ctx := context.Background()
	sess := loginSession(t, addr)

	_, err := sess.FetchFlags(ctx, "1:*")
	assert.True(t, errors.Is(err, idlesync_errors.ErrNotConnected))

	_, err = sess.BeginWait(ctx)
	assert.True(t, errors.Is(err, idlesync_errors.ErrIdleNotStarted))
}

func TestGateway_WaitTimeoutInterruptAndDone(t *testing.T) {
	addr := startMemoryServer(t)
	ctx := context.Background()
	sess := loginSession(t, addr)
	require.NoError(t, sess.Select(ctx, "INBOX"))

	handle, err := sess.BeginWait(ctx)
	require.NoError(t, err)

	result, err := handle.Wait(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, enum.WaitOutcomeTimeout, result.Outcome)

	handle.Interrupt()
	result, err = handle.Wait(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, enum.WaitOutcomeManualInterrupt, result.Outcome)

	assert.NoError(t, handle.Done(ctx))
	assert.NoError(t, sess.Logout(ctx))
}

func TestRunWithContext_AbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	aborted := false

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := runWithContext(ctx, func() error {
		<-release
		return nil
	}, func() {
		aborted = true
		close(release)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, aborted)
}

func TestGateway_TLSVerifiesServerName(t *testing.T) {
	l, pool := listenTLS(t)
	addr := startScriptedServer(t, l, scriptedServer{})
	gw := NewGateway(logger.NewNopLogger(),
		WithDialTimeout(2*time.Second),
		WithLogoutTimeout(2*time.Second),
		WithTLSConfig(&tls.Config{RootCAs: pool}),
	)
	ctx := context.Background()

	conn, err := gw.Connect(ctx, addr, "example.com", true)
	require.NoError(t, err)
	assert.NoError(t, conn.Close())

	_, err = gw.Connect(ctx, addr, "evil.invalid", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x509")
}

func TestGateway_ConnectBoundedBySilentServer(t *testing.T) {
	for _, useTLS := range []bool{false, true} {
		t.Run(fmt.Sprintf("tls=%t", useTLS), func(t *testing.T) {
			addr := startSilentServer(t)
			gw := NewGateway(logger.NewNopLogger(), WithDialTimeout(200*time.Millisecond))

			start := time.Now()
			_, err := gw.Connect(context.Background(), addr, "127.0.0.1", useTLS)
			require.Error(t, err)
			assert.Less(t, time.Since(start), 3*time.Second)
		})
	}
}

func TestGateway_BeginWaitHonoursContextOnStalledCapability(t *testing.T) {
	addr := startScriptedServer(t, listenLocal(t), scriptedServer{stallCapability: true})
	sess := loginSession(t, addr)
	require.NoError(t, sess.Select(context.Background(), "INBOX"))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := sess.BeginWait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestGateway_WaitReportsPushedData(t *testing.T) {
	addr := startScriptedServer(t, listenLocal(t), scriptedServer{pushDuringIdle: []string{"* 1 EXISTS"}})
	ctx := context.Background()
	sess := loginSession(t, addr)
	require.NoError(t, sess.Select(ctx, "INBOX"))

	handle, err := sess.BeginWait(ctx)
	require.NoError(t, err)

	result, err := handle.Wait(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, enum.WaitOutcomeNewData, result.Outcome)
	assert.Contains(t, result.Payload, "EXISTS 1")

	assert.NoError(t, handle.Done(ctx))
	assert.NoError(t, sess.Logout(ctx))
}
