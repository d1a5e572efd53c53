package tweaks

import (
	"errors"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ErrInvalidKey is returned when a private key is not a valid non-zero scalar
// or when a tweak would push it outside the curve order.
var ErrInvalidKey = errors.New("invalid private key")

// XOnly returns the 32-byte x-only serialization of a public key as used by
// taproot outputs and schnorr signatures.
func XOnly(pub *btcec.PublicKey) []byte {
	return schnorr.SerializePubKey(pub)
}

// tapTweakScalar maps taggedHash("TapTweak", xonly(pub) || msg) onto a
// scalar, failing if the hash is not below the group order.
func tapTweakScalar(pub *btcec.PublicKey, msg []byte) (*btcec.ModNScalar,
	error) {

	tweakHash := chainhash.TaggedHash(chainhash.TagTapTweak, XOnly(pub), msg)

	var tweak btcec.ModNScalar
	if overflow := tweak.SetByteSlice(tweakHash[:]); overflow {
		return nil, ErrInvalidKey
	}

	return &tweak, nil
}

func checkKey(priv *btcec.PrivateKey) error {
	if priv == nil || priv.Key.IsZero() {
		return ErrInvalidKey
	}

	return nil
}

// TagTweakPrivKey diversifies a private key with an arbitrary tag:
//
//   - tweakPriv := priv + taggedHash("TapTweak", xonly(pub) || tag) mod N
//
// Unlike the BIP-341 output key tweak the key is never negated first, so the
// result is a plain derivation function and not a taproot output key.
func TagTweakPrivKey(priv *btcec.PrivateKey,
	tag []byte) (*btcec.PrivateKey, error) {

	if err := checkKey(priv); err != nil {
		return nil, err
	}

	tweak, err := tapTweakScalar(priv.PubKey(), tag)
	if err != nil {
		return nil, err
	}

	tweak.Add(&priv.Key)
	if tweak.IsZero() {
		return nil, ErrInvalidKey
	}

	return &btcec.PrivateKey{Key: *tweak}, nil
}

// IndexTag is the tag used to derive the leaf key of the file at the given
// position of an order: the decimal index encoded as UTF-8.
func IndexTag(index int) []byte {
	return []byte(strconv.Itoa(index))
}

// OutputKeyTweakPrivKey returns the private key of the BIP-341 taproot output
// key committing to merkleRoot:
//
//   - d := priv, negated if the compressed pubkey starts with 0x03
//   - tweakPriv := d + taggedHash("TapTweak", xonly(pub) || merkleRoot) mod N
func OutputKeyTweakPrivKey(priv *btcec.PrivateKey,
	merkleRoot []byte) (*btcec.PrivateKey, error) {

	if err := checkKey(priv); err != nil {
		return nil, err
	}

	pub := priv.PubKey()

	key := priv.Key
	if pub.SerializeCompressed()[0] == secp.PubKeyFormatCompressedOdd {
		key.Negate()
	}

	tweak, err := tapTweakScalar(pub, merkleRoot)
	if err != nil {
		return nil, err
	}

	tweak.Add(&key)
	if tweak.IsZero() {
		return nil, ErrInvalidKey
	}

	return &btcec.PrivateKey{Key: *tweak}, nil
}
