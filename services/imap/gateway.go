package imap

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/customeros/idlesync/interfaces"
	"github.com/customeros/idlesync/internal/logger"
	"github.com/customeros/idlesync/internal/tracing"
)

const (
	DefaultDialTimeout   = 30 * time.Second
	DefaultKeepAlive     = 30 * time.Second
	DefaultLogoutTimeout = 25 * time.Second
	DefaultPollInterval  = 20 * time.Minute
	// IDLE is reissued before the server's 30 minute autologout
	DefaultIdleRestart = 25 * time.Minute
)

// Gateway opens IMAP connections with go-imap.
type Gateway struct {
	log           logger.Logger
	dialTimeout   time.Duration
	logoutTimeout time.Duration
	pollInterval  time.Duration
	tlsConfig     *tls.Config
}

type GatewayOption func(*Gateway)

func WithDialTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.dialTimeout = d }
}

// WithLogoutTimeout bounds DONE and LOGOUT.
func WithLogoutTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.logoutTimeout = d }
}

// WithTLSConfig sets the base TLS config. ServerName is always overwritten
// with the dialed host.
func WithTLSConfig(cfg *tls.Config) GatewayOption {
	return func(g *Gateway) { g.tlsConfig = cfg }
}

func NewGateway(log logger.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		log:           log,
		dialTimeout:   DefaultDialTimeout,
		logoutTimeout: DefaultLogoutTimeout,
		pollInterval:  DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Connect(ctx context.Context, addr, serverName string, useTLS bool) (interfaces.IMAPConnection, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPGateway.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("server", addr)
	span.SetTag("tls", useTLS)

	// dial, TLS handshake and greeting share one budget
	connectCtx, cancel := context.WithTimeout(ctx, g.dialTimeout)
	defer cancel()

	dialer := &net.Dialer{
		KeepAlive: DefaultKeepAlive,
	}

	conn, err := dialer.DialContext(connectCtx, "tcp", addr)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to connect to %s", addr)
	}

	if useTLS {
		tlsConfig := &tls.Config{}
		if g.tlsConfig != nil {
			tlsConfig = g.tlsConfig.Clone()
		}
		tlsConfig.ServerName = serverName

		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(connectCtx); err != nil {
			_ = conn.Close()
			tracing.TraceErr(span, err)
			return nil, errors.Wrapf(err, "tls handshake with %s", addr)
		}
		conn = tlsConn
	}

	var c *client.Client
	err = runWithContext(connectCtx, func() error {
		var newErr error
		c, newErr = client.New(conn)
		return newErr
	}, func() { _ = conn.Close() })
	if err != nil {
		_ = conn.Close()
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "reading greeting from %s", addr)
	}

	g.log.Debug("IMAP transport established", zap.String("server", addr), zap.Bool("tls", useTLS))

	return &connection{
		client:  c,
		gateway: g,
		addr:    addr,
	}, nil
}

// runWithContext runs a blocking go-imap call and invokes abort when ctx is
// cancelled first. go-imap v1 calls are not context aware; aborting the
// transport is the only way to unblock them.
func runWithContext(ctx context.Context, fn func() error, abort func()) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		abort()
		<-done
		return ctx.Err()
	}
}

type connection struct {
	client  *client.Client
	gateway *Gateway
	addr    string
}

func (c *connection) Login(ctx context.Context, user, pass string) (interfaces.IMAPSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPGateway.Login")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("username", user)

	err := runWithContext(ctx, func() error {
		return c.client.Login(user, pass)
	}, c.terminate)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to login")
	}

	return &session{
		client:  c.client,
		gateway: c.gateway,
		addr:    c.addr,
	}, nil
}

// Close drops the transport without LOGOUT.
func (c *connection) Close() error {
	return c.client.Terminate()
}

func (c *connection) terminate() {
	_ = c.client.Terminate()
}
