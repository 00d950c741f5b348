package provider

import (
	"encoding/json"

	"evmconnect/pkg/models"
	"evmconnect/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
)

// parseAccounts narrows a raw account list. Every entry must be a hex address.
func parseAccounts(method string, raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, malformed(method, "expected address list: %v", err)
	}
	if list == nil {
		list = []string{}
	}
	for _, a := range list {
		if !common.IsHexAddress(a) {
			return nil, malformed(method, "invalid address %q", a)
		}
	}
	return list, nil
}

// parseChainID narrows a raw chain id; it must be a hex quantity string.
func parseChainID(method string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", malformed(method, "expected hex string: %v", err)
	}
	if _, ok := utils.ParseHexQuantity(s); !ok {
		return "", malformed(method, "invalid chain id %q", s)
	}
	return s, nil
}

func parseEvent(kind models.EventKind, raw json.RawMessage) (models.ProviderEvent, error) {
	switch kind {
	case models.EventAccountsChanged:
		accounts, err := parseAccounts(string(kind), raw)
		if err != nil {
			return models.ProviderEvent{}, err
		}
		return models.ProviderEvent{Kind: kind, Accounts: accounts}, nil
	case models.EventChainChanged:
		chainID, err := parseChainID(string(kind), raw)
		if err != nil {
			return models.ProviderEvent{}, err
		}
		return models.ProviderEvent{Kind: kind, ChainID: chainID}, nil
	}
	return models.ProviderEvent{}, malformed(string(kind), "unknown event")
}
