package inscribe

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// schnorrSigSize is a SIGHASH_DEFAULT schnorr signature.
	schnorrSigSize = 64

	// ecdsaSigSize is an upper bound for a DER signature plus sighash
	// flag.
	ecdsaSigSize = 73

	// compressedPubKeySize is a compressed public key.
	compressedPubKeySize = 33
)

// EstimateRevealVSize returns the virtual size the packet will have once all
// inputs are signed and finalized. The spend path of every input is read
// from its psbt fields, so a draft assembled from placeholder outputs gives
// the size of the final reveal.
func EstimateRevealVSize(packet *psbt.Packet) (int64, error) {
	tx := packet.UnsignedTx.Copy()

	for idx, pIn := range packet.Inputs {
		txIn := tx.TxIn[idx]

		switch {
		// Script path: signature, leaf script and control block.
		case len(pIn.TaprootLeafScript) > 0:
			leaf := pIn.TaprootLeafScript[0]
			txIn.Witness = wire.TxWitness{
				make([]byte, schnorrSigSize), leaf.Script,
				leaf.ControlBlock,
			}

		// Taproot key path: a single signature.
		case len(pIn.TaprootInternalKey) > 0:
			txIn.Witness = wire.TxWitness{
				make([]byte, schnorrSigSize),
			}

		// P2SH-P2WPKH: redeem script push and witness.
		case len(pIn.RedeemScript) > 0:
			sigScript, err := txscript.NewScriptBuilder().
				AddData(pIn.RedeemScript).Script()
			if err != nil {
				return 0, err
			}
			txIn.SignatureScript = sigScript
			txIn.Witness = wire.TxWitness{
				make([]byte, ecdsaSigSize),
				make([]byte, compressedPubKeySize),
			}

		// P2WPKH: signature and key in the witness.
		case pIn.WitnessUtxo != nil:
			txIn.Witness = wire.TxWitness{
				make([]byte, ecdsaSigSize),
				make([]byte, compressedPubKeySize),
			}

		// P2PKH: signature and key in the script sig.
		case pIn.NonWitnessUtxo != nil:
			sigScript, err := txscript.NewScriptBuilder().
				AddData(make([]byte, ecdsaSigSize)).
				AddData(make([]byte, compressedPubKeySize)).
				Script()
			if err != nil {
				return 0, err
			}
			txIn.SignatureScript = sigScript

		default:
			return 0, fmt.Errorf("input %d: unknown spend path", idx)
		}
	}

	return mempool.GetTxVirtualSize(btcutil.NewTx(tx)), nil
}
