package utils

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

// ShortAddress renders 0x1234...abcd for narrow layouts.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// AddCommas inserts thousands separators into the integer part of a decimal string.
func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	parts := strings.Split(s, ".")
	integerPart := parts[0]
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var result strings.Builder
	result.WriteString(sign)
	remainder := n % 3
	if remainder > 0 {
		result.WriteString(integerPart[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < n; i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(integerPart[i : i+3])
	}

	if len(parts) > 1 {
		result.WriteString(".")
		result.WriteString(parts[1])
	}
	return result.String()
}

// FormatBigFloat renders f with the given decimals and thousands separators.
func FormatBigFloat(f *big.Float, decimals int) string {
	if f == nil {
		return "0"
	}
	return AddCommas(f.Text('f', decimals))
}

// WeiToEther converts a balance in wei to ether.
func WeiToEther(wei *big.Int) *big.Float {
	if wei == nil {
		return new(big.Float)
	}
	f := new(big.Float).SetInt(wei)
	return f.Quo(f, new(big.Float).SetInt(big.NewInt(params.Ether)))
}

// FormatBalance renders a wei balance in ether for display, e.g. "1,234.5000".
func FormatBalance(wei *big.Int, decimals int) string {
	return FormatBigFloat(WeiToEther(wei), decimals)
}

// ChainIDToDecimal converts a hex chain id ("0x1e") to its decimal form ("30").
// Unparseable input yields "".
func ChainIDToDecimal(chainID string) string {
	if chainID == "" {
		return ""
	}
	n, ok := ParseHexQuantity(chainID)
	if !ok {
		return ""
	}
	return n.String()
}

// ParseHexQuantity parses a 0x-prefixed hex quantity. Unlike hexutil.DecodeBig
// it tolerates leading zeros ("0x01"), which some wallets emit.
func ParseHexQuantity(s string) (*big.Int, bool) {
	if !has0xPrefix(s) {
		return nil, false
	}
	n, ok := new(big.Int).SetString(s[2:], 16)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// ParseDecimal parses a formatted balance, ignoring thousands separators.
func ParseDecimal(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
