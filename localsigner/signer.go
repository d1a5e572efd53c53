package localsigner

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ordkit/brc20mint/inscribe"
)

var (
	// ErrKeyMismatch is returned when the signing key does not own the
	// output spent by the requested input.
	ErrKeyMismatch = errors.New("signing key does not own input")

	// ErrUnsupportedScript is returned for outputs that cannot be signed
	// with a single key.
	ErrUnsupportedScript = errors.New("unsupported output script")
)

// Signer signs single psbt inputs with one private key. It plays the parent
// owner for the reveal transaction.
type Signer struct {
	key *btcec.PrivateKey
}

// New returns a signer for the given key.
func New(key *btcec.PrivateKey) *Signer {
	return &Signer{key: key}
}

// SignInput signs input index of the serialized psbt and returns the updated
// psbt. P2TR key path, P2WPKH, P2SH-P2WPKH and P2PKH outputs are supported.
func (s *Signer) SignInput(ctx context.Context, draft []byte,
	index int) ([]byte, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	packet, err := inscribe.ParseDraft(draft)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(packet.Inputs) {
		return nil, fmt.Errorf("input index %d out of range [0,%d)",
			index, len(packet.Inputs))
	}

	if err := s.sign(packet, index); err != nil {
		return nil, fmt.Errorf("unable to sign input %d: %w", index,
			err)
	}

	var buf bytes.Buffer
	if err := packet.Serialize(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (s *Signer) sign(packet *psbt.Packet, idx int) error {
	fetcher, err := inscribe.PrevOutFetcher(packet)
	if err != nil {
		return err
	}

	tx := packet.UnsignedTx
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	prevOut := fetcher.FetchPrevOutput(tx.TxIn[idx].PreviousOutPoint)
	pkScript := prevOut.PkScript

	pubKey := s.key.PubKey().SerializeCompressed()
	pubKeyHash := btcutil.Hash160(pubKey)

	var redeemScript []byte
	switch {
	case txscript.IsPayToTaproot(pkScript):
		pIn := &packet.Inputs[idx]
		if len(pIn.TaprootLeafScript) > 0 {
			return fmt.Errorf("%w: taproot script path",
				ErrUnsupportedScript)
		}

		tweaked := txscript.TweakTaprootPrivKey(
			*s.key, pIn.TaprootMerkleRoot,
		)
		if !bytes.Equal(schnorr.SerializePubKey(tweaked.PubKey()),
			pkScript[2:]) {

			return ErrKeyMismatch
		}

		sigHash, err := txscript.CalcTaprootSignatureHash(
			sigHashes, txscript.SigHashDefault, tx, idx, fetcher,
		)
		if err != nil {
			return err
		}
		sig, err := schnorr.Sign(tweaked, sigHash)
		if err != nil {
			return err
		}
		pIn.TaprootKeySpendSig = sig.Serialize()

		log.Debugf("Signed taproot key path input %d of %v", idx,
			tx.TxHash())

		return nil

	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		if !bytes.Equal(pkScript[2:], pubKeyHash) {
			return ErrKeyMismatch
		}

	case txscript.IsPayToScriptHash(pkScript):
		redeemScript = packet.Inputs[idx].RedeemScript
		if !txscript.IsPayToWitnessPubKeyHash(redeemScript) {
			return fmt.Errorf("%w: p2sh without p2wpkh redeem "+
				"script", ErrUnsupportedScript)
		}
		if !bytes.Equal(redeemScript[2:], pubKeyHash) {
			return ErrKeyMismatch
		}

	case txscript.IsPayToPubKeyHash(pkScript):
		if !bytes.Equal(pkScript[3:23], pubKeyHash) {
			return ErrKeyMismatch
		}

	default:
		return fmt.Errorf("%w: %x", ErrUnsupportedScript, pkScript)
	}

	var sig []byte
	if txscript.IsPayToPubKeyHash(pkScript) {
		sig, err = txscript.RawTxInSignature(
			tx, idx, pkScript, txscript.SigHashAll, s.key,
		)
	} else {
		subScript := pkScript
		if redeemScript != nil {
			subScript = redeemScript
		}
		sig, err = txscript.RawTxInWitnessSignature(
			tx, sigHashes, idx, prevOut.Value, subScript,
			txscript.SigHashAll, s.key,
		)
	}
	if err != nil {
		return err
	}

	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return err
	}
	outcome, err := updater.Sign(idx, sig, pubKey, redeemScript, nil)
	if err != nil {
		return err
	}
	if outcome != psbt.SignSuccesful {
		return fmt.Errorf("psbt rejected signature, outcome %d",
			outcome)
	}

	log.Debugf("Signed ecdsa input %d of %v", idx, tx.TxHash())

	return nil
}
