package envelope

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// InscriptionID points at an inscription through the transaction that
// revealed it and an index. A parent reference in outpoint form, txid:vout,
// maps onto the same pair.
type InscriptionID struct {
	// Txid is the reveal transaction hash.
	Txid chainhash.Hash

	// Index is the inscription index, or the output index for outpoint
	// references.
	Index uint32
}

// String returns the ordinals form of the id, <txid>i<index>.
func (id InscriptionID) String() string {
	return fmt.Sprintf("%vi%d", id.Txid, id.Index)
}

// ParseParentRef parses a parent reference given either as an outpoint,
// "<txid>:<vout>", or as an inscription id, "<txid>i<index>".
func ParseParentRef(ref string) (InscriptionID, error) {
	var txidStr, indexStr string
	switch {
	case strings.Contains(ref, ":"):
		parts := strings.Split(ref, ":")
		if len(parts) != 2 {
			return InscriptionID{}, fmt.Errorf("%w: %q",
				ErrInvalidParentLocator, ref)
		}
		txidStr, indexStr = parts[0], parts[1]

	case len(ref) > chainhash.MaxHashStringSize &&
		ref[chainhash.MaxHashStringSize] == 'i':

		txidStr = ref[:chainhash.MaxHashStringSize]
		indexStr = ref[chainhash.MaxHashStringSize+1:]

	default:
		return InscriptionID{}, fmt.Errorf("%w: %q",
			ErrInvalidParentLocator, ref)
	}

	if len(txidStr) != chainhash.MaxHashStringSize {
		return InscriptionID{}, fmt.Errorf("%w: bad txid in %q",
			ErrInvalidParentLocator, ref)
	}
	txid, err := chainhash.NewHashFromStr(txidStr)
	if err != nil {
		return InscriptionID{}, fmt.Errorf("%w: %v",
			ErrInvalidParentLocator, err)
	}

	index, err := strconv.ParseUint(indexStr, 10, 32)
	if err != nil {
		return InscriptionID{}, fmt.Errorf("%w: bad index in %q",
			ErrInvalidParentLocator, ref)
	}

	return InscriptionID{Txid: *txid, Index: uint32(index)}, nil
}

// EncodeParentLocator returns the compact provenance locator: the txid in
// internal byte order followed by the little-endian index with its trailing
// zero bytes removed. Index zero therefore encodes as the bare 32-byte txid.
func EncodeParentLocator(id InscriptionID) []byte {
	var index [4]byte
	binary.LittleEndian.PutUint32(index[:], id.Index)

	n := len(index)
	for n > 0 && index[n-1] == 0 {
		n--
	}

	locator := make([]byte, 0, chainhash.HashSize+n)
	locator = append(locator, id.Txid[:]...)

	return append(locator, index[:n]...)
}

// DecodeParentLocator reverses EncodeParentLocator.
func DecodeParentLocator(locator []byte) (InscriptionID, error) {
	if len(locator) < chainhash.HashSize ||
		len(locator) > chainhash.HashSize+4 {

		return InscriptionID{}, fmt.Errorf("%w: length %d",
			ErrInvalidParentLocator, len(locator))
	}

	// Trailing zeroes are always stripped by the encoder.
	if len(locator) > chainhash.HashSize && locator[len(locator)-1] == 0 {
		return InscriptionID{}, fmt.Errorf("%w: trailing zero index "+
			"byte", ErrInvalidParentLocator)
	}

	var id InscriptionID
	copy(id.Txid[:], locator[:chainhash.HashSize])

	var index [4]byte
	copy(index[:], locator[chainhash.HashSize:])
	id.Index = binary.LittleEndian.Uint32(index[:])

	return id, nil
}
