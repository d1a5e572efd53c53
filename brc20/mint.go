package brc20

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/holiman/uint256"
)

const (
	// Protocol is the value of the "p" field of every BRC-20 operation.
	Protocol = "brc-20"

	// OpMint is the value of the "op" field of a mint.
	OpMint = "mint"

	// MaxDecimals is the number of decimals amounts are scaled to.
	MaxDecimals = 18

	// contentType is the content type mints are inscribed with.
	contentType = "text/plain;charset=utf-8"
)

var (
	// ErrInvalidTick is returned for tickers that are not 4 or 5 bytes.
	ErrInvalidTick = errors.New("ticker must be 4 or 5 bytes")

	// ErrInvalidAmount is returned for amounts that are not positive
	// decimals within the protocol range.
	ErrInvalidAmount = errors.New("invalid mint amount")

	// maxAmount is (2^64 - 1) * 10^18, the largest scaled amount an
	// indexer accepts.
	maxAmount = new(uint256.Int).Mul(
		uint256.NewInt(^uint64(0)),
		new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(MaxDecimals)),
	)
)

// Mint is a BRC-20 mint operation. Five byte tickers can only be minted by
// inscriptions that carry the ticker's deploy inscription as parent.
type Mint struct {
	Tick string
	Amt  string
}

// mintBody fixes the field order of the JSON body.
type mintBody struct {
	P    string `json:"p"`
	Op   string `json:"op"`
	Tick string `json:"tick"`
	Amt  string `json:"amt"`
}

// SelfMint reports whether the ticker is a five byte self mint ticker.
func (m *Mint) SelfMint() bool {
	return len(m.Tick) == 5
}

// Validate checks the ticker length and the amount.
func (m *Mint) Validate() error {
	if !utf8.ValidString(m.Tick) ||
		(len(m.Tick) != 4 && len(m.Tick) != 5) {

		return fmt.Errorf("%w: %q", ErrInvalidTick, m.Tick)
	}

	if _, err := ScaledAmount(m.Amt); err != nil {
		return err
	}

	return nil
}

// ScaledAmount parses a decimal amount and scales it to MaxDecimals.
func ScaledAmount(amt string) (*uint256.Int, error) {
	intPart, fracPart, hasDot := strings.Cut(amt, ".")
	if intPart == "" || (hasDot && fracPart == "") ||
		!isDigits(intPart) || !isDigits(fracPart) {

		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amt)
	}
	if len(fracPart) > MaxDecimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimals",
			ErrInvalidAmount, amt, MaxDecimals)
	}

	fracPart += strings.Repeat("0", MaxDecimals-len(fracPart))
	scaled, err := uint256.FromDecimal(intPart + fracPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, amt)
	}

	if scaled.IsZero() || scaled.Gt(maxAmount) {
		return nil, fmt.Errorf("%w: %q out of range", ErrInvalidAmount,
			amt)
	}

	return scaled, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

// Body returns the JSON inscription body of the mint.
func (m *Mint) Body() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	err := enc.Encode(&mintBody{
		P:    Protocol,
		Op:   OpMint,
		Tick: m.Tick,
		Amt:  m.Amt,
	})
	if err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(b.Bytes(), []byte("\n")), nil
}

// DataURL returns the body as a base64 data URL ready for inscribing.
func (m *Mint) DataURL() (string, error) {
	body, err := m.Body()
	if err != nil {
		return "", err
	}

	return "data:" + contentType + ";base64," +
		base64.StdEncoding.EncodeToString(body), nil
}
