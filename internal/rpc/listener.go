package rpc

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Listener wraps a Server in a real grpc.Server, mirroring
// pkg/api/server.go's own grpc.NewServer/Start/Stop shape one layer up
// from the handler logic server_test.go exercises directly. It takes
// transport credentials rather than loading certificates itself so it
// does not need to know how storage-node certificates are issued;
// callers (cmd/storaged) build those from the cluster's CA.
type Listener struct {
	grpc *grpc.Server
	lis  net.Listener
}

// NewListener registers s under its hand-authored ServiceDesc. creds
// may be nil, which serves plaintext gRPC (listener_test.go does so
// over loopback TCP); production callers must pass mTLS credentials, since the storage
// RPC surface carries unencrypted graph data otherwise.
func NewListener(s *Server, creds credentials.TransportCredentials) *Listener {
	var opts []grpc.ServerOption
	if creds != nil {
		opts = append(opts, grpc.Creds(creds))
	}
	srv := grpc.NewServer(opts...)
	srv.RegisterService(ServiceDesc(s), s)
	return &Listener{grpc: srv}
}

// NewServerTLSCredentials builds the mTLS credentials.TransportCredentials
// NewListener expects, given the storage node's own certificate and the
// cluster CA pool to verify peers against. Kept here rather than behind
// internal/transportsec directly so internal/rpc does not depend on
// that package's on-disk certificate layout.
func NewServerTLSCredentials(cert tls.Certificate, clientCAs *x509.CertPool) credentials.TransportCredentials {
	cfg := &tls.Config{
		ClientAuth:   tls.RequestClientCert,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}
	if clientCAs != nil {
		cfg.ClientCAs = clientCAs
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return credentials.NewTLS(cfg)
}

// Start binds addr and serves until Stop is called or the listener
// fails; it blocks, same as grpc.Server.Serve. Addr is available to
// other goroutines as soon as Start returns from binding, via Addr.
func (l *Listener) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	l.lis = lis
	return l.grpc.Serve(lis)
}

// Addr returns the bound listen address; only valid after Start has
// begun binding (racy with Start itself, safe to call from the
// goroutine that called Start once it has returned, or after a
// successful Bind call in tests).
func (l *Listener) Addr() net.Addr {
	if l.lis == nil {
		return nil
	}
	return l.lis.Addr()
}

// Bind listens on addr without serving, so a caller can learn the
// bound address (e.g. when addr ends in :0) before handing control to
// Serve. Start is the normal production entry point; Bind+Serve is for
// callers, such as tests, that need the resolved address first.
func (l *Listener) Bind(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	l.lis = lis
	return nil
}

// Serve blocks accepting connections on the listener Bind established.
func (l *Listener) Serve() error {
	return l.grpc.Serve(l.lis)
}

// Stop drains in-flight RPCs and shuts the listener down.
func (l *Listener) Stop() {
	l.grpc.GracefulStop()
}
