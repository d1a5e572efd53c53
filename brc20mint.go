package brc20mint

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/btcsuite/btcd/wire"
	"github.com/ordkit/brc20mint/build"
	"github.com/ordkit/brc20mint/chainfee"
	"github.com/ordkit/brc20mint/commitreveal"
	"github.com/ordkit/brc20mint/envelope"
	"github.com/ordkit/brc20mint/funding"
	"github.com/ordkit/brc20mint/localsigner"
	"github.com/ordkit/brc20mint/openapi"
	"github.com/ordkit/brc20mint/sessionstore"
)

// Main is the true entry point of the minter. It resolves the parent and the
// gas coins, runs the commit/reveal protocol and prints both txids to out. The
// run is abandoned before any broadcast once shutdownChan is closed.
func Main(cfg *Config, out io.Writer, shutdownChan <-chan struct{}) error {
	defer func() {
		mintLog.Info("Shutdown complete")
		if err := logRotator.Close(); err != nil {
			fmt.Printf("could not close log rotator: %v\n", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-shutdownChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	mintLog.Infof("Version: %s commit=%s, network=%s", build.Version(),
		build.Commit, cfg.ActiveNetParams.Name)

	sessions, err := sessionstore.Open(
		filepath.Join(cfg.DataDir, defaultSessionDBName),
	)
	if err != nil {
		return err
	}
	defer sessions.Close()

	client := openapi.NewClient(&openapi.ClientConfig{
		URL:            cfg.APIURL,
		APIKey:         cfg.APIKey,
		RequestTimeout: cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
	})

	gasWallet, err := funding.NewWallet(funding.Config{
		Key:       cfg.gasKey,
		AddrType:  cfg.gasAddrType,
		FeeRate:   chainfee.SatPerVByte(cfg.CommitFeeRate),
		NetParams: cfg.ActiveNetParams,
	})
	if err != nil {
		return err
	}
	mintLog.Infof("Gas wallet %v (%v)", gasWallet.Address(),
		cfg.gasAddrType)

	orchestrator := commitreveal.New(commitreveal.Config{
		Params:      cfg.ActiveNetParams,
		Provider:    client,
		Funder:      gasWallet,
		Signer:      localsigner.New(cfg.parentKey),
		Sessions:    sessions,
		RevealVSize: cfg.RevealVSize,
		DryRun:      cfg.DryRun,
	})

	parent, coins, err := orchestrator.FetchInputs(
		ctx, cfg.parentID.String(), cfg.parentKey.PubKey(),
	)
	if err != nil {
		return fmt.Errorf("unable to resolve inputs: %w", err)
	}

	order, err := cfg.order(parent)
	if err != nil {
		return err
	}

	result, err := orchestrator.Run(ctx, order, coins)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		if err := printDryRun(out, result); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintf(out, "commitAddress: %s\ncommitTxId: %v\n"+
		"revealTxId: %v\n", result.CommitAddress, result.CommitTxid,
		result.RevealTxid)

	return err
}

// printDryRun writes both transactions and the decoded envelope of the
// reveal.
func printDryRun(out io.Writer, result *commitreveal.Result) error {
	for _, tx := range []struct {
		name string
		tx   *wire.MsgTx
	}{
		{"commitTx", result.CommitTx},
		{"revealTx", result.RevealTx},
	} {
		txHex, err := commitreveal.TxHex(tx.tx)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s: %s\n", tx.name, txHex); err != nil {
			return err
		}
	}

	// The envelope leaf is the second witness element of the reveal
	// input.
	witness := result.RevealTx.TxIn[0].Witness
	if len(witness) < 3 {
		return fmt.Errorf("reveal input has %d witness elements",
			len(witness))
	}
	env, err := envelope.Parse(witness[1])
	if err != nil {
		return err
	}

	parent := "none"
	env.Parent.WhenSome(func(id envelope.InscriptionID) {
		parent = id.String()
	})

	_, err = fmt.Fprintf(out, "contentType: %s\nbody: %s\nparent: %s\n",
		env.ContentType, env.Body, parent)

	return err
}
