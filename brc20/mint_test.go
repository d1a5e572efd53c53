package brc20

import (
	"testing"

	"github.com/ordkit/brc20mint/envelope"
	"github.com/stretchr/testify/require"
)

// TestMintBody checks the JSON layout and the data URL round trip.
func TestMintBody(t *testing.T) {
	t.Parallel()

	mint := &Mint{Tick: "WORLD", Amt: "1000"}
	require.True(t, mint.SelfMint())

	body, err := mint.Body()
	require.NoError(t, err)
	require.Equal(
		t, `{"p":"brc-20","op":"mint","tick":"WORLD","amt":"1000"}`,
		string(body),
	)

	dataURL, err := mint.DataURL()
	require.NoError(t, err)

	content, err := envelope.DecodeDataURL(dataURL)
	require.NoError(t, err)
	require.Equal(t, "text/plain;charset=utf-8", content.ContentType)
	require.Equal(t, body, content.Body)

	// Four byte tickers are not self minted.
	require.False(t, (&Mint{Tick: "ordi", Amt: "1"}).SelfMint())
}

// TestMintValidate covers ticker and amount rules.
func TestMintValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		mint Mint
		err  error
	}{
		{"four byte", Mint{Tick: "ordi", Amt: "1000"}, nil},
		{"five byte", Mint{Tick: "WORLD", Amt: "0.5"}, nil},
		{"max decimals", Mint{Tick: "WORLD", Amt: "1.000000000000000001"}, nil},
		{"max amount", Mint{Tick: "WORLD", Amt: "18446744073709551615"}, nil},
		{"short tick", Mint{Tick: "abc", Amt: "1"}, ErrInvalidTick},
		{"long tick", Mint{Tick: "abcdef", Amt: "1"}, ErrInvalidTick},
		{"zero", Mint{Tick: "ordi", Amt: "0"}, ErrInvalidAmount},
		{"zero fraction", Mint{Tick: "ordi", Amt: "0.000"}, ErrInvalidAmount},
		{"negative", Mint{Tick: "ordi", Amt: "-1"}, ErrInvalidAmount},
		{"plus sign", Mint{Tick: "ordi", Amt: "+1"}, ErrInvalidAmount},
		{"empty", Mint{Tick: "ordi", Amt: ""}, ErrInvalidAmount},
		{"trailing dot", Mint{Tick: "ordi", Amt: "1."}, ErrInvalidAmount},
		{"leading dot", Mint{Tick: "ordi", Amt: ".5"}, ErrInvalidAmount},
		{"exponent", Mint{Tick: "ordi", Amt: "1e3"}, ErrInvalidAmount},
		{"two dots", Mint{Tick: "ordi", Amt: "1.2.3"}, ErrInvalidAmount},
		{
			"too many decimals",
			Mint{Tick: "ordi", Amt: "1.0000000000000000001"},
			ErrInvalidAmount,
		},
		{
			"over max",
			Mint{Tick: "ordi", Amt: "18446744073709551616"},
			ErrInvalidAmount,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.mint.Validate()
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)

			_, err = tc.mint.Body()
			require.ErrorIs(t, err, tc.err)
		})
	}
}

// TestScaledAmount checks the 18 decimal scaling.
func TestScaledAmount(t *testing.T) {
	t.Parallel()

	scaled, err := ScaledAmount("1.5")
	require.NoError(t, err)
	require.Equal(t, "1500000000000000000", scaled.Dec())

	scaled, err = ScaledAmount("1000")
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000000", scaled.Dec())
}
