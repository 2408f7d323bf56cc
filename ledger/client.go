package ledger

import (
	"context"
	"crypto/tls"
	"fmt"

	lapiv2 "github.com/chainsafe/canton-middleware/pkg/canton/lapi/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial opens a client connection to a Canton participant's Ledger API
// endpoint. With TLS enabled, self-signed participant certificates are
// accepted and HTTP/2 is negotiated explicitly.
func Dial(target string, tlsEnabled bool) (*grpc.ClientConn, error) {
	var opts []grpc.DialOption
	if tlsEnabled {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{"h2"},
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger at %s: %w", target, err)
	}
	return conn, nil
}

// EndClient is the slice of the state service needed to resolve the current
// ledger end.
type EndClient interface {
	GetLedgerEnd(ctx context.Context, in *lapiv2.GetLedgerEndRequest, opts ...grpc.CallOption) (*lapiv2.GetLedgerEndResponse, error)
}

// End returns the participant's current ledger end offset.
func End(ctx context.Context, client EndClient) (int64, error) {
	resp, err := client.GetLedgerEnd(ctx, &lapiv2.GetLedgerEndRequest{})
	if err != nil {
		return 0, fmt.Errorf("failed to get ledger end: %w", err)
	}
	return resp.Offset, nil
}
