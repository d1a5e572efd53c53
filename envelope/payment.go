package envelope

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// Payment is a single-leaf taproot output committing to an envelope, along
// with everything needed to spend it through the leaf.
type Payment struct {
	// Address is the commitment address funded by the commit
	// transaction.
	Address *btcutil.AddressTaproot

	// PkScript is the output script of Address.
	PkScript []byte

	// OutputKey is the tweaked taproot output key.
	OutputKey *btcec.PublicKey

	// Leaf is the envelope leaf, with the base leaf version.
	Leaf txscript.TapLeaf

	// ControlBlock proves Leaf is committed to by OutputKey.
	ControlBlock []byte

	// LeafHash is the tapleaf hash signed by script path spends. With a
	// single leaf it equals MerkleRoot.
	LeafHash chainhash.Hash

	// MerkleRoot is the root of the one leaf tree.
	MerkleRoot chainhash.Hash
}

// NewPayment wraps a leaf script into a one leaf taproot tree under the given
// internal key.
func NewPayment(internalKey *btcec.PublicKey, leafScript []byte,
	params *chaincfg.Params) (*Payment, error) {

	if internalKey == nil {
		return nil, fmt.Errorf("%w: missing internal key",
			ErrKeyDerivation)
	}

	leaf := txscript.NewBaseTapLeaf(leafScript)
	tree := txscript.AssembleTaprootScriptTree(leaf)
	merkleRoot := tree.RootNode.TapHash()

	outputKey := txscript.ComputeTaprootOutputKey(
		internalKey, merkleRoot[:],
	)
	address, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(outputKey), params,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}

	controlBlock := tree.LeafMerkleProofs[0].ToControlBlock(internalKey)
	controlBlockBytes, err := controlBlock.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}

	log.Debugf("Derived commitment address %v for leaf %v", address,
		leaf.TapHash())

	return &Payment{
		Address:      address,
		PkScript:     pkScript,
		OutputKey:    outputKey,
		Leaf:         leaf,
		ControlBlock: controlBlockBytes,
		LeafHash:     leaf.TapHash(),
		MerkleRoot:   merkleRoot,
	}, nil
}
