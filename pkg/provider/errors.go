package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// CodeUserRejected is the EIP-1193 error code for a dismissed prompt.
const CodeUserRejected = 4001

var (
	ErrProviderAbsent = errors.New("no injected provider")
	ErrUserRejected   = errors.New("user rejected the request")
	ErrProviderError  = errors.New("provider error")
)

type Kind int

const (
	KindProviderError Kind = iota
	KindUserRejected
	KindProviderAbsent
)

func (k Kind) String() string {
	switch k {
	case KindUserRejected:
		return "user_rejected"
	case KindProviderAbsent:
		return "provider_absent"
	default:
		return "provider_error"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUserRejected:
		return ErrUserRejected
	case KindProviderAbsent:
		return ErrProviderAbsent
	default:
		return ErrProviderError
	}
}

// Error is a classified provider failure. Error() returns the provider's own
// message so it can be shown to the user as-is.
type Error struct {
	Kind    Kind
	Method  string
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.sentinel().Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind.sentinel() }

// classify converts a transport or JSON-RPC error into an *Error.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return err
	}
	e := &Error{Kind: KindProviderError, Method: method, Message: err.Error(), Err: err}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		e.Code = rpcErr.ErrorCode()
		if e.Code == CodeUserRejected || isRejectionMessage(e.Message) {
			e.Kind = KindUserRejected
		}
	}
	return e
}

// Some wallets report dismissal as -32603 with a "user denied" message.
func isRejectionMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "user denied") || strings.Contains(m, "user rejected")
}

func malformed(method, format string, args ...any) error {
	return &Error{
		Kind:    KindProviderError,
		Method:  method,
		Message: fmt.Sprintf("malformed %s payload: %s", method, fmt.Sprintf(format, args...)),
	}
}

func absent(method string) error {
	return &Error{Kind: KindProviderAbsent, Method: method, Message: ErrProviderAbsent.Error()}
}
