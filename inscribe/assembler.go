package inscribe

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ordkit/brc20mint/chainfee"
	"github.com/ordkit/brc20mint/envelope"
	"github.com/ordkit/brc20mint/lnutils"
	"github.com/ordkit/brc20mint/tweaks"
)

const (
	// RBFSequence signals replaceability on every reveal input.
	RBFSequence uint32 = 0xfffffffd

	// revealTxVersion is the version of the reveal transaction.
	revealTxVersion = 2

	// Input positions of the reveal transaction.
	inputReveal = 0
	inputParent = 1
	inputBonus  = 2
)

// PlaceholderOutputs returns two outputs of a nonexistent transaction. They
// let the assembler run before the commit transaction exists, which is
// enough to learn the commitment address since it does not depend on the
// spent outputs.
func PlaceholderOutputs() (SpendableOutput, SpendableOutput) {
	return SpendableOutput{
			OutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: 0},
			Value:    chainfee.DustLimit,
		}, SpendableOutput{
			OutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: 1},
			Value:    btcutil.Amount(100 * btcutil.SatoshiPerBitcoin),
		}
}

// Assembler builds reveal transactions for inscription orders.
type Assembler struct {
	params *chaincfg.Params
}

// NewAssembler returns an assembler producing addresses for the given
// network.
func NewAssembler(params *chaincfg.Params) *Assembler {
	return &Assembler{params: params}
}

// commitment holds the keys and envelope derived from an order.
type commitment struct {
	internalKey *btcec.PrivateKey
	leafKey     *btcec.PrivateKey
	payment     *envelope.Payment
}

// compile derives the leaf keys of the order and compiles the envelope of its
// first file.
func (a *Assembler) compile(order *Order) (*commitment, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	leafKeys, err := DeriveLeafKeys(order.PrivKey, len(order.Files))
	if err != nil {
		return nil, err
	}

	file := order.Files[0]
	content, err := envelope.DecodeDataURL(file.DataURL)
	if err != nil {
		return nil, err
	}

	script, err := envelope.BuildScript(
		leafKeys[0].PubKey(), envelope.NewInscription(content, file.Parent),
	)
	if err != nil {
		return nil, err
	}

	payment, err := envelope.NewPayment(
		order.PrivKey.PubKey(), script, a.params,
	)
	if err != nil {
		return nil, err
	}

	return &commitment{
		internalKey: order.PrivKey,
		leafKey:     leafKeys[0],
		payment:     payment,
	}, nil
}

// CommitAddress returns the commitment of an order without assembling a
// transaction. The address only depends on the order key, the first file and
// the network.
func (a *Assembler) CommitAddress(order *Order) (*envelope.Payment, error) {
	c, err := a.compile(order)
	if err != nil {
		return nil, err
	}

	return c.payment, nil
}

// Assemble builds the reveal transaction of an order. utxo1 is spent through
// the envelope leaf, the parent is co-spent and left unsigned, and utxo2 is
// spent through the key path of the same commitment:
//
//	in0:  utxo1  script path, signed with the leaf key
//	in1:  parent spend path by owner address type, unsigned
//	in2:  utxo2  key path, signed with the tweaked order key
//	out0: order value to the first file address
//	out1: parent value to the parent address
func (a *Assembler) Assemble(order *Order, utxo1,
	utxo2 SpendableOutput) (*Draft, error) {

	c, err := a.compile(order)
	if err != nil {
		return nil, err
	}
	payment := c.payment

	parentSpend, err := ClassifyParent(&order.Parent)
	if err != nil {
		return nil, err
	}

	destScript, err := payToAddr(order.Files[0].Address)
	if err != nil {
		return nil, err
	}
	parentScript, err := payToAddr(order.Parent.Address)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(revealTxVersion)
	for _, prevOut := range []wire.OutPoint{
		utxo1.OutPoint, order.Parent.OutPoint, utxo2.OutPoint,
	} {
		txIn := wire.NewTxIn(&prevOut, nil, nil)
		txIn.Sequence = RBFSequence
		tx.AddTxIn(txIn)
	}
	tx.AddTxOut(wire.NewTxOut(int64(order.Value), destScript))
	tx.AddTxOut(wire.NewTxOut(int64(order.Parent.Value), parentScript))

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("unable to create psbt: %w", err)
	}

	packet.Inputs[inputReveal].WitnessUtxo = wire.NewTxOut(
		int64(utxo1.Value), payment.PkScript,
	)
	packet.Inputs[inputReveal].TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
		ControlBlock: payment.ControlBlock,
		Script:       payment.Leaf.Script,
		LeafVersion:  payment.Leaf.LeafVersion,
	}}

	parentSpend.populate(&packet.Inputs[inputParent])

	packet.Inputs[inputBonus].WitnessUtxo = wire.NewTxOut(
		int64(utxo2.Value), payment.PkScript,
	)
	packet.Inputs[inputBonus].TaprootInternalKey = schnorr.SerializePubKey(
		c.internalKey.PubKey(),
	)
	packet.Inputs[inputBonus].TaprootMerkleRoot = payment.MerkleRoot[:]

	if err := a.sign(packet, c); err != nil {
		return nil, err
	}

	log.Debugf("Assembled reveal %v for commitment %v, parent spend %v",
		tx.TxHash(), payment.Address, parentSpend)
	log.Tracef("Reveal draft: %v", lnutils.SpewLogClosure(tx))

	return &Draft{
		Packet:  packet,
		Payment: payment,
	}, nil
}

// sign adds the script path signature of input 0 and the key path signature
// of input 2.
func (a *Assembler) sign(packet *psbt.Packet, c *commitment) error {
	fetcher, err := PrevOutFetcher(packet)
	if err != nil {
		return err
	}
	tx := packet.UnsignedTx
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	leafHash, err := txscript.CalcTapscriptSignaturehash(
		sigHashes, txscript.SigHashDefault, tx, inputReveal, fetcher,
		c.payment.Leaf,
	)
	if err != nil {
		return fmt.Errorf("unable to compute leaf sighash: %w", err)
	}
	leafSig, err := schnorr.Sign(c.leafKey, leafHash)
	if err != nil {
		return fmt.Errorf("unable to sign reveal input: %w", err)
	}
	packet.Inputs[inputReveal].TaprootScriptSpendSig = []*psbt.TaprootScriptSpendSig{{
		XOnlyPubKey: schnorr.SerializePubKey(c.leafKey.PubKey()),
		LeafHash:    c.payment.LeafHash[:],
		Signature:   leafSig.Serialize(),
		SigHash:     txscript.SigHashDefault,
	}}

	outputKey, err := tweaks.OutputKeyTweakPrivKey(
		c.internalKey, c.payment.MerkleRoot[:],
	)
	if err != nil {
		return err
	}
	keyHash, err := txscript.CalcTaprootSignatureHash(
		sigHashes, txscript.SigHashDefault, tx, inputBonus, fetcher,
	)
	if err != nil {
		return fmt.Errorf("unable to compute key spend sighash: %w", err)
	}
	keySig, err := schnorr.Sign(outputKey, keyHash)
	if err != nil {
		return fmt.Errorf("unable to sign bonus input: %w", err)
	}
	packet.Inputs[inputBonus].TaprootKeySpendSig = keySig.Serialize()

	return nil
}
