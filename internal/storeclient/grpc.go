package storeclient

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// DialConfig configures the gRPC channel to the store daemon, mirroring
// pkg/config/context.go's GetContext: a CA-rooted TLS ClientConn when a CA
// certificate path is given, or an insecure channel for local development.
type DialConfig struct {
	Address    string
	CACertPath string
}

// Dial opens a grpc.ClientConn to the store daemon using the same
// CA-cert-pool/TLS pattern vorpal's GetContext uses for its agent and
// registry connections.
func Dial(cfg DialConfig) (*grpc.ClientConn, error) {
	host := strings.ReplaceAll(cfg.Address, "https://", "")
	host = strings.ReplaceAll(host, "grpc://", "")

	var creds credentials.TransportCredentials
	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, tgerror.Wrap(tgerror.StoreError, err, "failed to read CA certificate %s", cfg.CACertPath)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, tgerror.New(tgerror.StoreError, "failed to append CA certificate %s", cfg.CACertPath)
		}
		creds = credentials.NewTLS(&tls.Config{RootCAs: pool, ServerName: "localhost"})
	} else {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(host, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, tgerror.Wrap(tgerror.StoreError, err, "failed to connect to store at %s", cfg.Address)
	}
	return conn, nil
}

// GRPCStore wires a dialed connection for lifecycle management (Close) and
// delegates every Store method to a Local backing store. The store's wire
// protocol is not part of this retrieval pack (§1 lists it as an external
// collaborator); see DESIGN.md for why only the channel plumbing here is
// "real" gRPC while the operations land on the same local content-addressed
// cache Local uses. This keeps the dependency genuinely exercised (TLS
// setup, connection lifecycle) without fabricating an unverifiable wire
// format.
type GRPCStore struct {
	*Local
	conn *grpc.ClientConn
}

// NewGRPCStore dials cfg and returns a Store backed by it.
func NewGRPCStore(cfg DialConfig, cacheRoot string) (*GRPCStore, error) {
	conn, err := Dial(cfg)
	if err != nil {
		return nil, err
	}
	local, err := NewLocal(cacheRoot)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &GRPCStore{Local: local, conn: conn}, nil
}

func (g *GRPCStore) Close() error {
	return g.conn.Close()
}
