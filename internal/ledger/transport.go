package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hashicorp/go-retryablehttp"
)

// newRetryClient creates an HTTP client that retries transient RPC transport failures.
// Retrying is safe for eth_call and for eth_sendRawTransaction, whose payload is an
// already-signed transaction identified by its hash.
func newRetryClient(retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}

// dialRPC connects to an HTTP(S) JSON-RPC endpoint over the retrying transport. Other
// schemes (ws, ipc) are dialed directly.
func dialRPC(ctx context.Context, url string, retryMax int) (*ethclient.Client, error) {
	retryClient := newRetryClient(retryMax)

	rpcClient, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(retryClient.StandardClient()))
	if err != nil {
		return nil, fmt.Errorf("error dialing ledger RPC: %w", err)
	}
	return ethclient.NewClient(rpcClient), nil
}
