package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"evmconnect/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedError struct {
	code int
	msg  string
}

func (e codedError) Error() string  { return e.msg }
func (e codedError) ErrorCode() int { return e.code }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
		code int
	}{
		{"eip-1193 rejection", codedError{4001, "User rejected the request."}, ErrUserRejected, 4001},
		{"internal error with denial text", codedError{-32603, "MetaMask Tx Signature: User denied transaction signature."}, ErrUserRejected, -32603},
		{"rpc failure", codedError{-32000, "insufficient funds for gas"}, ErrProviderError, -32000},
		{"transport failure", errors.New("connection reset"), ErrProviderError, 0},
		{"wrapped rejection", fmt.Errorf("send: %w", codedError{4001, "no"}), ErrUserRejected, 4001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("eth_requestAccounts", tt.err)
			assert.True(t, errors.Is(err, tt.want))

			var perr *Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.code, perr.Code)
			assert.Equal(t, tt.err.Error(), err.Error())
		})
	}

	assert.NoError(t, classify("eth_accounts", nil))
}

func TestClassify_KeepsClassifiedErrors(t *testing.T) {
	orig := absent("eth_accounts")
	assert.Same(t, orig, classify("eth_accounts", orig))
	assert.True(t, errors.Is(orig, ErrProviderAbsent))
	assert.Equal(t, "no injected provider", orig.Error())
}

func TestParseAccounts(t *testing.T) {
	tests := []struct {
		raw     string
		want    []string
		wantErr bool
	}{
		{`["` + addrA + `"]`, []string{addrA}, false},
		{`[]`, []string{}, false},
		{`null`, []string{}, false},
		{`["0xA1"]`, nil, true},
		{`[1]`, nil, true},
		{`{"accounts": []}`, nil, true},
	}

	for _, tt := range tests {
		got, err := parseAccounts("eth_accounts", json.RawMessage(tt.raw))
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrProviderError), tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := parseEvent(models.EventChainChanged, json.RawMessage(`"0x1e"`))
	require.NoError(t, err)
	assert.Equal(t, models.ProviderEvent{Kind: models.EventChainChanged, ChainID: "0x1e"}, ev)

	_, err = parseEvent(models.EventChainChanged, json.RawMessage(`30`))
	assert.Error(t, err)

	_, err = parseEvent("disconnect", json.RawMessage(`{}`))
	assert.Error(t, err)
}
