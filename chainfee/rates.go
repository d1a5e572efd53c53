package chainfee

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// DustLimit is the conventional inscription postage: the P2PKH dust
// threshold at the default relay fee. It is above the dust threshold of every
// standard output script, P2TR outputs only need 330 sats.
const DustLimit btcutil.Amount = 546

// SatPerVByte is a fee rate in sat/vbyte, the unit mint orders and the
// command line use.
type SatPerVByte btcutil.Amount

// FeePerKVByte converts to the sat/kvb unit of btcwallet's txauthor.
func (s SatPerVByte) FeePerKVByte() SatPerKVByte {
	return SatPerKVByte(s * 1000)
}

// FeeForVSize is the fee of a transaction of the given virtual size.
func (s SatPerVByte) FeeForVSize(vbytes int64) btcutil.Amount {
	return btcutil.Amount(s) * btcutil.Amount(vbytes)
}

// String formats the rate with its unit.
func (s SatPerVByte) String() string {
	return fmt.Sprintf("%d sat/vb", int64(s))
}

// SatPerKVByte is a fee rate in sat per 1000 vbytes.
type SatPerKVByte btcutil.Amount

// FeeForVSize is the fee of a transaction of the given virtual size, rounded
// down.
func (s SatPerKVByte) FeeForVSize(vbytes int64) btcutil.Amount {
	return btcutil.Amount(s) * btcutil.Amount(vbytes) / 1000
}

// String formats the rate with its unit.
func (s SatPerKVByte) String() string {
	return fmt.Sprintf("%d sat/kvb", int64(s))
}
