package commitreveal

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ordkit/brc20mint/envelope"
	"github.com/ordkit/brc20mint/funding"
	"github.com/ordkit/brc20mint/inscribe"
	"github.com/ordkit/brc20mint/lnutils"
	"github.com/ordkit/brc20mint/openapi"
	"golang.org/x/sync/errgroup"
)

// ParentFromInfo turns the indexer view of a parent inscription into the
// reference co-spent by the reveal transaction.
func ParentFromInfo(info *openapi.InscriptionInfo, ownerKey *btcec.PublicKey,
	params *chaincfg.Params) (*inscribe.ParentReference, error) {

	id, err := envelope.ParseParentRef(info.InscriptionID)
	if err != nil {
		return nil, err
	}

	addrStr := info.UTXO.Address
	if addrStr == "" {
		addrStr = info.Address
	}
	addr, err := btcutil.DecodeAddress(addrStr, params)
	if err != nil {
		return nil, fmt.Errorf("invalid parent address %q: %w", addrStr,
			err)
	}

	outPoint, err := info.UTXO.OutPoint()
	if err != nil {
		return nil, err
	}
	pkScript, err := info.UTXO.PkScript()
	if err != nil {
		return nil, err
	}
	rawTx, err := info.UTXO.MsgTx()
	if err != nil {
		return nil, err
	}

	return &inscribe.ParentReference{
		ID:       id,
		Value:    btcutil.Amount(info.UTXO.Satoshi),
		Address:  addr,
		PkScript: pkScript,
		OutPoint: outPoint,
		PubKey:   ownerKey,
		RawTx:    rawTx,
	}, nil
}

// CoinsFromUTXOs converts indexer outputs to funding coins. Outputs carrying
// inscriptions are flagged so they are never spent as fee money.
func CoinsFromUTXOs(utxos []openapi.UTXO) ([]funding.Coin, error) {
	coins := make([]funding.Coin, 0, len(utxos))
	for i := range utxos {
		utxo := &utxos[i]

		outPoint, err := utxo.OutPoint()
		if err != nil {
			return nil, err
		}
		pkScript, err := utxo.PkScript()
		if err != nil {
			return nil, err
		}

		coins = append(coins, funding.Coin{
			OutPoint:  outPoint,
			Value:     btcutil.Amount(utxo.Satoshi),
			PkScript:  pkScript,
			Inscribed: len(utxo.Inscriptions) > 0,
		})
	}

	return coins, nil
}

// FetchInputs concurrently loads the parent inscription and the funder's
// coins.
func (o *Orchestrator) FetchInputs(ctx context.Context, parentID string,
	ownerKey *btcec.PublicKey) (*inscribe.ParentReference, []funding.Coin,
	error) {

	var (
		info  *openapi.InscriptionInfo
		utxos []openapi.UTXO
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = o.cfg.Provider.InscriptionInfo(gctx, parentID)
		return err
	})
	g.Go(func() error {
		var err error
		utxos, err = o.cfg.Provider.AddressUTXOs(
			gctx, o.cfg.Funder.Address().EncodeAddress(),
		)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	parent, err := ParentFromInfo(info, ownerKey, o.cfg.Params)
	if err != nil {
		return nil, nil, err
	}
	coins, err := CoinsFromUTXOs(utxos)
	if err != nil {
		return nil, nil, err
	}

	log.Infof("Parent %v held by %v (%v), %d funder coins", parent.ID,
		parent.OutPoint, parent.Value, len(coins))
	log.Debugf("Funder coins: %v", lnutils.Map(coins,
		func(c funding.Coin) string {
			return fmt.Sprintf("%v=%v", c.OutPoint, c.Value)
		},
	))

	return parent, coins, nil
}
