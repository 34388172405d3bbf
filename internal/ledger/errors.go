package ledger

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// JSON-RPC error codes that signal an overloaded or failing node rather than an answer
var unhealthyCodes = map[int]bool{
	-32603: true, // internal error
	-32005: true, // limit exceeded
	-32002: true, // resource unavailable
}

// Substrings of errors that go-ethereum flattens to text, e.g. a revert during gas estimation
var answeredMessages = []string{
	"execution reverted",
	"insufficient funds",
	"nonce too low",
	"gas required exceeds allowance",
}

// IsAnswered reports whether err is the node's reply to a well-formed request, such as a
// contract revert or a rejected transaction, as opposed to a transport or node failure.
// Answered errors say nothing about node health and must not trip the circuit breaker.
func IsAnswered(err error) bool {
	if err == nil {
		return false
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return !unhealthyCodes[rpcErr.ErrorCode()]
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range answeredMessages {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
