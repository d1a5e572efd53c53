package openapi

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// InscriptionRef is an inscription sitting on a UTXO.
type InscriptionRef struct {
	InscriptionID     string `json:"inscriptionId"`
	InscriptionNumber int64  `json:"inscriptionNumber"`
	Offset            int64  `json:"offset"`
}

// UTXO represents an unspent transaction output as reported by the indexer.
type UTXO struct {
	TxID         string           `json:"txid"`
	Vout         uint32           `json:"vout"`
	Satoshi      int64            `json:"satoshi"`
	ScriptPk     string           `json:"scriptPk"`
	Address      string           `json:"address"`
	Height       int64            `json:"height,omitempty"`
	RawTx        string           `json:"rawtx,omitempty"`
	Inscriptions []InscriptionRef `json:"inscriptions"`
}

// OutPoint returns the outpoint of the UTXO.
func (u *UTXO) OutPoint() (wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(u.TxID)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("invalid txid %q: %w",
			u.TxID, err)
	}

	return wire.OutPoint{Hash: *hash, Index: u.Vout}, nil
}

// PkScript decodes the output script of the UTXO.
func (u *UTXO) PkScript() ([]byte, error) {
	pkScript, err := hex.DecodeString(u.ScriptPk)
	if err != nil {
		return nil, fmt.Errorf("invalid scriptPk %q: %w", u.ScriptPk,
			err)
	}

	return pkScript, nil
}

// MsgTx decodes the raw transaction that created the UTXO, if the indexer
// returned it.
func (u *UTXO) MsgTx() (fn.Option[*wire.MsgTx], error) {
	if u.RawTx == "" {
		return fn.None[*wire.MsgTx](), nil
	}

	txBytes, err := hex.DecodeString(u.RawTx)
	if err != nil {
		return fn.None[*wire.MsgTx](), fmt.Errorf("failed to decode "+
			"tx hex: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
		return fn.None[*wire.MsgTx](), fmt.Errorf("failed to "+
			"deserialize tx: %w", err)
	}

	return fn.Some(tx), nil
}

// InscriptionInfo describes an inscription and the UTXO holding it.
type InscriptionInfo struct {
	InscriptionID     string `json:"inscriptionId"`
	InscriptionNumber int64  `json:"inscriptionNumber"`
	Address           string `json:"address"`
	ContentType       string `json:"contentType"`
	Offset            int64  `json:"offset"`
	UTXO              UTXO   `json:"utxo"`
}

// UTXOData is one page of an address UTXO listing.
type UTXOData struct {
	Cursor           int    `json:"cursor"`
	Total            int    `json:"total"`
	TotalConfirmed   int    `json:"totalConfirmed"`
	TotalUnconfirmed int    `json:"totalUnconfirmed"`
	UTXO             []UTXO `json:"utxo"`
}

// pushTxRequest is the body of a broadcast request.
type pushTxRequest struct {
	TxHex string `json:"txHex"`
}

// envelope wraps every API response.
type envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}
