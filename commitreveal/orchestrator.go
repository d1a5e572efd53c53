package commitreveal

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/ordkit/brc20mint/chainfee"
	"github.com/ordkit/brc20mint/envelope"
	"github.com/ordkit/brc20mint/funding"
	"github.com/ordkit/brc20mint/inscribe"
	"github.com/ordkit/brc20mint/lnutils"
	"github.com/ordkit/brc20mint/sessionstore"
)

const (
	// DefaultRevealVSize is the reveal size funded when estimation is
	// disabled and no size is configured.
	DefaultRevealVSize = 350

	// parentInput is the reveal input signed by the parent owner.
	parentInput = 1
)

// Config holds the collaborators of the orchestrator.
type Config struct {
	// Params is the network.
	Params *chaincfg.Params

	// Provider queries the indexer and broadcasts.
	Provider DataProvider

	// Funder pays the commit outputs.
	Funder Funder

	// Signer signs the parent input of the reveal.
	Signer ExternalSigner

	// Sessions journals sessions when set.
	Sessions SessionStore

	// RevealVSize is the reveal size the commit funds fees for. When
	// zero the size is estimated from a placeholder draft.
	RevealVSize int64

	// DryRun builds and signs both transactions without broadcasting.
	DryRun bool

	// Clock stamps new sessions. Defaults to the wall clock.
	Clock clock.Clock
}

// Commit is a signed commit transaction paying an order's commitment.
type Commit struct {
	// Payment is the commitment.
	Payment *envelope.Payment

	// Tx pays the inscription output at index 0 and the reveal fee at
	// index 1.
	Tx *wire.MsgTx

	// RevealVSize is the reveal size the fee output was sized for.
	RevealVSize int64

	// Session is the journal entry, nil without a session store.
	Session *sessionstore.Session
}

// Result describes a completed run.
type Result struct {
	CommitAddress string
	CommitTx      *wire.MsgTx
	RevealTx      *wire.MsgTx
	CommitTxid    chainhash.Hash
	RevealTxid    chainhash.Hash

	// Broadcast is false for dry runs.
	Broadcast bool
}

// Orchestrator runs the two phase commit/reveal protocol around the
// assembler.
type Orchestrator struct {
	cfg Config

	assembler *inscribe.Assembler
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &Orchestrator{
		cfg:       cfg,
		assembler: inscribe.NewAssembler(cfg.Params),
	}
}

// revealVSize returns the configured reveal size or estimates it from a draft
// assembled over placeholder outputs.
func (o *Orchestrator) revealVSize(order *inscribe.Order) (int64, error) {
	if o.cfg.RevealVSize > 0 {
		return o.cfg.RevealVSize, nil
	}

	utxo1, utxo2 := inscribe.PlaceholderOutputs()
	draft, err := o.assembler.Assemble(order, utxo1, utxo2)
	if err != nil {
		return 0, err
	}

	return inscribe.EstimateRevealVSize(draft.Packet)
}

// PrepareCommit computes the commitment of the order and funds it. A commit
// already journaled for the same commitment is reused instead of funding a
// second one.
func (o *Orchestrator) PrepareCommit(ctx context.Context, order *inscribe.Order,
	coins []funding.Coin) (*Commit, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payment, err := o.assembler.CommitAddress(order)
	if err != nil {
		return nil, err
	}
	commitAddr := payment.Address.EncodeAddress()

	if o.cfg.Sessions != nil {
		session, err := o.cfg.Sessions.Fetch(commitAddr)
		switch {
		case err == nil && session.CommitTx != nil:
			err := checkCommit(session.CommitTx, payment, order)
			if err != nil {
				return nil, err
			}

			log.Infof("Reusing commit tx %v for %v (state %v)",
				session.CommitTx.TxHash(), commitAddr,
				session.State)

			return &Commit{
				Payment: payment,
				Tx:      session.CommitTx,
				Session: session,
			}, nil

		case err != nil && !errors.Is(err, sessionstore.ErrSessionNotFound):
			return nil, err
		}
	}

	vsize, err := o.revealVSize(order)
	if err != nil {
		return nil, err
	}
	revealFee := order.FeeRate.FeeForVSize(vsize)

	log.Debugf("Funding commitment %v: inscription=%v, reveal fee=%v "+
		"(%d vbytes at %v)", commitAddr, order.Value, revealFee, vsize,
		order.FeeRate)

	outputs := []*wire.TxOut{
		wire.NewTxOut(int64(order.Value), payment.PkScript),
		wire.NewTxOut(int64(revealFee), payment.PkScript),
	}

	// At low fee rates the fee output would be dust and the commit
	// non-standard. The surplus goes to the reveal's fee.
	if mempool.IsDust(outputs[1], mempool.DefaultMinRelayTxFee) {
		log.Infof("Raising reveal fee output from %v to %v to stay "+
			"above dust", revealFee, chainfee.DustLimit)

		outputs[1].Value = int64(chainfee.DustLimit)
	}
	commitTx, err := o.cfg.Funder.Fund(outputs, coins)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFundingFailed, err)
	}

	commit := &Commit{
		Payment:     payment,
		Tx:          commitTx,
		RevealVSize: vsize,
	}

	if o.cfg.Sessions != nil {
		commit.Session = &sessionstore.Session{
			CommitAddress: commitAddr,
			State:         sessionstore.StateCommitSigned,
			CommitTx:      commitTx,
			CreatedAt:     o.cfg.Clock.Now(),
		}
		if err := o.cfg.Sessions.Put(commit.Session); err != nil {
			return nil, err
		}
	}

	return commit, nil
}

// checkCommit makes sure the first two outputs of a commit tx pay the
// commitment, the first one carrying exactly the inscription value of the
// order and the second one a positive reveal fee. The commitment does not
// cover the value, so a journaled commit of an order rerun with another
// --value is caught here.
func checkCommit(tx *wire.MsgTx, payment *envelope.Payment,
	order *inscribe.Order) error {

	if len(tx.TxOut) < 2 ||
		!bytes.Equal(tx.TxOut[0].PkScript, payment.PkScript) ||
		!bytes.Equal(tx.TxOut[1].PkScript, payment.PkScript) {

		return fmt.Errorf("%w: %v", ErrCommitMismatch, tx.TxHash())
	}

	if btcutil.Amount(tx.TxOut[0].Value) != order.Value {
		return fmt.Errorf("%w: %v pays %v for the inscription, order "+
			"wants %v", ErrCommitMismatch, tx.TxHash(),
			btcutil.Amount(tx.TxOut[0].Value), order.Value)
	}
	if tx.TxOut[1].Value <= 0 {
		return fmt.Errorf("%w: %v leaves no reveal fee",
			ErrCommitMismatch, tx.TxHash())
	}

	return nil
}

// revealFee returns inputs minus outputs of tx, failing with ErrOverspend
// when the outputs are larger.
func revealFee(tx *wire.MsgTx,
	fetcher txscript.PrevOutputFetcher) (btcutil.Amount, error) {

	var in, out btcutil.Amount
	for idx, txIn := range tx.TxIn {
		prevOut := fetcher.FetchPrevOutput(txIn.PreviousOutPoint)
		if prevOut == nil {
			return 0, fmt.Errorf("input %d: unknown previous "+
				"output %v", idx, txIn.PreviousOutPoint)
		}
		in += btcutil.Amount(prevOut.Value)
	}
	for _, txOut := range tx.TxOut {
		out += btcutil.Amount(txOut.Value)
	}

	if out > in {
		return 0, fmt.Errorf("%w: in=%v out=%v", ErrOverspend, in, out)
	}

	return in - out, nil
}

// BuildReveal assembles the reveal over the commit outputs, has the parent
// owner sign it and returns the finalized transaction.
func (o *Orchestrator) BuildReveal(ctx context.Context, order *inscribe.Order,
	commit *Commit) (*inscribe.Draft, *wire.MsgTx, error) {

	if err := checkCommit(commit.Tx, commit.Payment, order); err != nil {
		return nil, nil, err
	}

	commitHash := commit.Tx.TxHash()
	utxo1 := inscribe.SpendableOutput{
		OutPoint: wire.OutPoint{Hash: commitHash, Index: 0},
		Value:    btcutil.Amount(commit.Tx.TxOut[0].Value),
	}
	utxo2 := inscribe.SpendableOutput{
		OutPoint: wire.OutPoint{Hash: commitHash, Index: 1},
		Value:    btcutil.Amount(commit.Tx.TxOut[1].Value),
	}

	draft, err := o.assembler.Assemble(order, utxo1, utxo2)
	if err != nil {
		return nil, nil, err
	}

	// The commitment must not depend on the outputs spent.
	if !bytes.Equal(draft.Payment.PkScript, commit.Payment.PkScript) {
		return nil, nil, fmt.Errorf("%w: reveal spends %v",
			ErrCommitMismatch, draft.Payment.Address)
	}

	fetcher, err := inscribe.PrevOutFetcher(draft.Packet)
	if err != nil {
		return nil, nil, err
	}
	fee, err := revealFee(draft.Packet.UnsignedTx, fetcher)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("Reveal pays %v in fees", fee)

	raw, err := draft.Serialize()
	if err != nil {
		return nil, nil, err
	}

	if commit.Session != nil {
		commit.Session.Reveal = raw
		if err := o.cfg.Sessions.Put(commit.Session); err != nil {
			return nil, nil, err
		}
	}

	signed, err := o.cfg.Signer.SignInput(ctx, raw, parentInput)
	if err != nil {
		return draft, nil, fmt.Errorf("%w: %w",
			ErrExternalSignatureDeclined, err)
	}

	packet, err := inscribe.ParseDraft(signed)
	if err != nil {
		return draft, nil, fmt.Errorf("%w: unreadable psbt: %w",
			ErrExternalSignatureDeclined, err)
	}
	if packet.UnsignedTx.TxHash() != draft.Packet.UnsignedTx.TxHash() {
		return draft, nil, fmt.Errorf("%w: signer changed the "+
			"transaction", ErrExternalSignatureDeclined)
	}

	revealTx, err := inscribe.Finalize(packet)
	if err != nil {
		return draft, nil, fmt.Errorf("%w: %w",
			ErrExternalSignatureDeclined, err)
	}
	if err := verifyTx(packet, revealTx); err != nil {
		return draft, nil, fmt.Errorf("%w: %w",
			ErrExternalSignatureDeclined, err)
	}

	log.Debugf("Reveal %v finalized", revealTx.TxHash())
	log.Tracef("Reveal tx: %v", lnutils.TxHexLogClosure(revealTx))

	return draft, revealTx, nil
}

// verifyTx checks a finalized transaction does not spend more than its
// inputs and runs every input through the script engine, which checks
// signatures but not amounts.
func verifyTx(packet *psbt.Packet, tx *wire.MsgTx) error {
	fetcher, err := inscribe.PrevOutFetcher(packet)
	if err != nil {
		return err
	}

	if _, err := revealFee(tx, fetcher); err != nil {
		return err
	}

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for idx, txIn := range tx.TxIn {
		prevOut := fetcher.FetchPrevOutput(txIn.PreviousOutPoint)

		vm, err := txscript.NewEngine(
			prevOut.PkScript, tx, idx, txscript.StandardVerifyFlags,
			nil, sigHashes, prevOut.Value, fetcher,
		)
		if err != nil {
			return err
		}
		if err := vm.Execute(); err != nil {
			return fmt.Errorf("input %d: %w", idx, err)
		}
	}

	return nil
}

// Run funds the order's commitment, builds the signed reveal and broadcasts
// commit then reveal. Both transactions are signed before anything is
// broadcast.
func (o *Orchestrator) Run(ctx context.Context, order *inscribe.Order,
	coins []funding.Coin) (*Result, error) {

	commit, err := o.PrepareCommit(ctx, order, coins)
	if err != nil {
		return nil, err
	}

	result := &Result{
		CommitAddress: commit.Payment.Address.EncodeAddress(),
		CommitTx:      commit.Tx,
		CommitTxid:    commit.Tx.TxHash(),
	}

	session := commit.Session
	if session != nil && session.State == sessionstore.StateRevealPublished {
		log.Infof("Session %v already revealed in %v",
			result.CommitAddress, chainhash.Hash(session.RevealTxid))

		result.RevealTxid = session.RevealTxid
		result.Broadcast = true

		return result, nil
	}

	_, revealTx, err := o.BuildReveal(ctx, order, commit)
	if err != nil {
		return nil, err
	}
	result.RevealTx = revealTx
	result.RevealTxid = revealTx.TxHash()

	if o.cfg.DryRun {
		log.Infof("Dry run: commit %v, reveal %v not broadcast",
			result.CommitTxid, result.RevealTxid)
		log.Tracef("Commit tx: %v\n%v\nReveal tx: %v",
			lnutils.TxHexLogClosure(commit.Tx),
			lnutils.NewSeparatorClosure(),
			lnutils.TxHexLogClosure(revealTx))

		return result, nil
	}

	if session == nil || session.State < sessionstore.StateCommitPublished {
		if err := o.broadcast(ctx, commit.Tx); err != nil {
			return nil, err
		}
		err := o.markState(
			result.CommitAddress, sessionstore.StateCommitPublished,
			chainhash.Hash{},
		)
		if err != nil {
			return nil, err
		}
	}

	if err := o.broadcast(ctx, revealTx); err != nil {
		return nil, err
	}
	err = o.markState(
		result.CommitAddress, sessionstore.StateRevealPublished,
		result.RevealTxid,
	)
	if err != nil {
		return nil, err
	}
	result.Broadcast = true

	log.Infof("Inscribed: commit %v, reveal %v", result.CommitTxid,
		result.RevealTxid)

	return result, nil
}

func (o *Orchestrator) markState(commitAddr string, state sessionstore.State,
	revealTxid chainhash.Hash) error {

	if o.cfg.Sessions == nil {
		return nil
	}

	return o.cfg.Sessions.MarkState(commitAddr, state, revealTxid)
}

// broadcast pushes a transaction through the data provider.
func (o *Orchestrator) broadcast(ctx context.Context, tx *wire.MsgTx) error {
	txHex, err := TxHex(tx)
	if err != nil {
		return err
	}

	txid, err := o.cfg.Provider.PushTx(ctx, txHex)
	if err != nil {
		return fmt.Errorf("%w: %v: %w", ErrBroadcastFailed, tx.TxHash(),
			err)
	}

	log.Infof("Broadcast %v", txid)

	return nil
}

// TxHex returns the hex serialization of a transaction.
func TxHex(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf.Bytes()), nil
}
