package inscribe

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ordkit/brc20mint/envelope"
)

// Draft is a partially signed reveal transaction: inputs 0 and 2 carry their
// signatures, input 1 waits for the parent owner.
type Draft struct {
	// Packet is the partially signed transaction.
	Packet *psbt.Packet

	// Payment is the envelope commitment spent by inputs 0 and 2.
	Payment *envelope.Payment
}

// Serialize returns the binary psbt encoding of the draft.
func (d *Draft) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Packet.Serialize(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Hex returns the hex encoded psbt.
func (d *Draft) Hex() (string, error) {
	raw, err := d.Serialize()
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(raw), nil
}

// Base64 returns the base64 encoded psbt.
func (d *Draft) Base64() (string, error) {
	return d.Packet.B64Encode()
}

// psbtMagic is the binary psbt prefix.
var psbtMagic = []byte{0x70, 0x73, 0x62, 0x74, 0xff}

// ParseDraft decodes a psbt given in binary, hex or base64 form.
func ParseDraft(raw []byte) (*psbt.Packet, error) {
	raw = bytes.TrimSpace(raw)

	switch {
	case bytes.HasPrefix(raw, psbtMagic):
		return psbt.NewFromRawBytes(bytes.NewReader(raw), false)

	case bytes.HasPrefix(raw, []byte("70736274ff")):
		decoded, err := hex.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid hex psbt: %w", err)
		}
		return psbt.NewFromRawBytes(bytes.NewReader(decoded), false)

	default:
		return psbt.NewFromRawBytes(bytes.NewReader(raw), true)
	}
}

// PrevOutFetcher collects the outputs spent by every input of the packet, as
// required by taproot signature hashes.
func PrevOutFetcher(packet *psbt.Packet) (*txscript.MultiPrevOutFetcher,
	error) {

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, txIn := range packet.UnsignedTx.TxIn {
		pIn := packet.Inputs[idx]
		prevOut := txIn.PreviousOutPoint

		switch {
		case pIn.WitnessUtxo != nil:
			fetcher.AddPrevOut(prevOut, pIn.WitnessUtxo)

		case pIn.NonWitnessUtxo != nil:
			if int(prevOut.Index) >= len(pIn.NonWitnessUtxo.TxOut) {
				return nil, fmt.Errorf("input %d: previous "+
					"transaction has no output %d", idx,
					prevOut.Index)
			}
			fetcher.AddPrevOut(
				prevOut, pIn.NonWitnessUtxo.TxOut[prevOut.Index],
			)

		default:
			return nil, fmt.Errorf("input %d: missing utxo "+
				"information", idx)
		}
	}

	return fetcher, nil
}

// Finalize builds the final witnesses of a fully signed packet and extracts
// the network transaction.
func Finalize(packet *psbt.Packet) (*wire.MsgTx, error) {
	if err := psbt.MaybeFinalizeAll(packet); err != nil {
		return nil, fmt.Errorf("unable to finalize psbt: %w", err)
	}

	tx, err := psbt.Extract(packet)
	if err != nil {
		return nil, fmt.Errorf("unable to extract tx: %w", err)
	}

	return tx, nil
}
