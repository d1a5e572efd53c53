package envelope

import (
	"bytes"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const testParentTxid = "b61b0172d95e266c18aea0c624db987e971a5d6d4ebc2aaed85da4642d635735"

var (
	testLeafKey, _  = btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x11}, 32))
	testInternal, _ = btcec.PrivKeyFromBytes(
		bytes.Repeat([]byte{0x22}, 32),
	)
)

// TestDecodeDataURL checks content type and body extraction.
func TestDecodeDataURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		url         string
		contentType string
		body        []byte
		err         error
	}{
		{
			name:        "base64 with charset",
			url:         "data:text/plain;charset=utf-8;base64,aGVsbG8=",
			contentType: "text/plain;charset=utf-8",
			body:        []byte("hello"),
		},
		{
			name:        "plain json",
			url:         `data:application/json,{"p":"brc-20"}`,
			contentType: "application/json",
			body:        []byte(`{"p":"brc-20"}`),
		},
		{
			name:        "escaped json",
			url:         "data:application/json,%7B%22a%22%3A1%7D",
			contentType: "application/json",
			body:        []byte(`{"a":1}`),
		},
		{
			name:        "literal percent",
			url:         `data:application/json,{"pct":"100%"}`,
			contentType: "application/json",
			body:        []byte(`{"pct":"100%"}`),
		},
		{
			name:        "raw utf8",
			url:         "data:text/plain;charset=utf-8,gm ☀",
			contentType: "text/plain;charset=utf-8",
			body:        []byte("gm ☀"),
		},
		{
			name: "empty",
			url:  "",
			err:  ErrInvalidContent,
		},
		{
			name: "not a data url",
			url:  "https://example.com/x.png",
			err:  ErrInvalidContent,
		},
		{
			name: "empty body",
			url:  "data:text/plain;base64,",
			err:  ErrInvalidContent,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			content, err := DecodeDataURL(tc.url)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.contentType, content.ContentType)
			require.Equal(t, tc.body, content.Body)
		})
	}
}

// TestParentLocatorRoundTrip encodes the vout values that exercise the
// trailing zero stripping and makes sure they decode back.
func TestParentLocatorRoundTrip(t *testing.T) {
	t.Parallel()

	txid, err := chainhash.NewHashFromStr(testParentTxid)
	require.NoError(t, err)

	testCases := []struct {
		vout uint32
		size int
	}{
		{vout: 0, size: 32},
		{vout: 1, size: 33},
		{vout: 256, size: 34},
		{vout: 0x01000000, size: 36},
	}

	for _, tc := range testCases {
		id := InscriptionID{Txid: *txid, Index: tc.vout}

		locator := EncodeParentLocator(id)
		require.Len(t, locator, tc.size)

		// The locator starts with the reversed display txid.
		require.Equal(t, txid[:], locator[:32])

		decoded, err := DecodeParentLocator(locator)
		require.NoError(t, err)
		require.Equal(t, id, decoded)
	}

	// Non canonical and truncated locators are rejected.
	_, err = DecodeParentLocator(append(txid[:], 0x01, 0x00))
	require.ErrorIs(t, err, ErrInvalidParentLocator)

	_, err = DecodeParentLocator(txid[:31])
	require.ErrorIs(t, err, ErrInvalidParentLocator)
}

// TestParentLocatorProperty checks the round trip for arbitrary ids.
func TestParentLocatorProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		var id InscriptionID
		copy(id.Txid[:], rapid.SliceOfN(
			rapid.Byte(), 32, 32,
		).Draw(t, "txid"))
		id.Index = rapid.Uint32().Draw(t, "index")

		decoded, err := DecodeParentLocator(EncodeParentLocator(id))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if decoded != id {
			t.Fatalf("round trip mismatch: %v != %v", decoded, id)
		}
	})
}

// TestParseParentRef accepts outpoints and inscription ids.
func TestParseParentRef(t *testing.T) {
	t.Parallel()

	outpoint, err := ParseParentRef(testParentTxid + ":1")
	require.NoError(t, err)
	require.EqualValues(t, 1, outpoint.Index)
	require.Equal(t, testParentTxid, outpoint.Txid.String())

	id, err := ParseParentRef(testParentTxid + "i0")
	require.NoError(t, err)
	require.EqualValues(t, 0, id.Index)
	require.Equal(t, testParentTxid+"i0", id.String())

	for _, bad := range []string{
		"", "abc:0", testParentTxid, testParentTxid + ":x",
		testParentTxid + ":1:2", testParentTxid + "i-1",
	} {
		_, err := ParseParentRef(bad)
		require.ErrorIs(t, err, ErrInvalidParentLocator, bad)
	}
}

// TestBuildScriptMinimalPush asserts that a final one byte chunk in [1,16] is
// compiled as a data push and not as a small integer opcode.
func TestBuildScriptMinimalPush(t *testing.T) {
	t.Parallel()

	for value := byte(1); value <= 16; value++ {
		body := append(bytes.Repeat([]byte{'a'}, MaxChunkSize), value)
		insc := &Inscription{
			ContentType: "text/plain",
			Body:        body,
		}

		script, err := BuildScript(testLeafKey.PubKey(), insc)
		require.NoError(t, err)

		// The script ends with OP_DATA_1 <value> OP_ENDIF.
		tail := script[len(script)-3:]
		require.Equal(
			t, []byte{txscript.OP_DATA_1, value, txscript.OP_ENDIF},
			tail,
		)

		disasm, err := txscript.DisasmString(script)
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(
			disasm, " "+hexByte(value)+" OP_ENDIF",
		), disasm)

		env, err := Parse(script)
		require.NoError(t, err)
		require.Equal(t, body, env.Body)
	}
}

func hexByte(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0x0f]})
}

// TestParseRejectsSmallIntBody makes sure a body rendered as OP_1..OP_16 is
// not taken for content.
func TestParseRejectsSmallIntBody(t *testing.T) {
	t.Parallel()

	script, err := BuildScript(testLeafKey.PubKey(), &Inscription{
		ContentType: "text/plain",
		Body:        []byte{0x05},
	})
	require.NoError(t, err)

	// Swap the OP_DATA_1 0x05 push for OP_5.
	mangled := append([]byte{}, script[:len(script)-3]...)
	mangled = append(mangled, txscript.OP_5, txscript.OP_ENDIF)

	_, err = Parse(mangled)
	require.ErrorIs(t, err, ErrInvalidContent)
}

// TestBuildScriptLayout checks the envelope fields and the chunking of large
// bodies.
func TestBuildScriptLayout(t *testing.T) {
	t.Parallel()

	parent, err := ParseParentRef(testParentTxid + ":256")
	require.NoError(t, err)

	body := bytes.Repeat([]byte{0xab}, 2*MaxChunkSize+7)
	insc := &Inscription{
		ContentType: "text/plain;charset=utf-8",
		Body:        body,
		Parent:      fn.Some(parent),
	}

	script, err := BuildScript(testLeafKey.PubKey(), insc)
	require.NoError(t, err)

	xOnly := schnorr.SerializePubKey(testLeafKey.PubKey())
	prefix := []byte{txscript.OP_DATA_32}
	prefix = append(prefix, xOnly...)
	prefix = append(prefix, txscript.OP_CHECKSIG, txscript.OP_FALSE,
		txscript.OP_IF, txscript.OP_DATA_3, 'o', 'r', 'd',
		txscript.OP_DATA_1, 0x01)
	require.True(t, bytes.HasPrefix(script, prefix))

	// Count body pushes: two full chunks and a 7 byte tail.
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	var chunks []int
	seenProtocol, inBody := false, false
	for tokenizer.Next() {
		switch {
		case bytes.Equal(tokenizer.Data(), protocolID):
			seenProtocol = true
		case seenProtocol && !inBody &&
			tokenizer.Opcode() == txscript.OP_0:

			inBody = true
		case inBody && tokenizer.Opcode() != txscript.OP_ENDIF:
			chunks = append(chunks, len(tokenizer.Data()))
		}
	}
	require.NoError(t, tokenizer.Err())
	require.Equal(t, []int{MaxChunkSize, MaxChunkSize, 7}, chunks)

	env, err := Parse(script)
	require.NoError(t, err)
	require.Equal(t, insc.ContentType, env.ContentType)
	require.Equal(t, body, env.Body)
	require.Equal(t, xOnly, env.LeafKey)
	require.Equal(t, parent, env.Parent.UnwrapOrFail(t))
}

// TestBuildScriptSingleByteContentType covers the one byte content type
// field.
func TestBuildScriptSingleByteContentType(t *testing.T) {
	t.Parallel()

	script, err := BuildScript(testLeafKey.PubKey(), &Inscription{
		ContentType: "\x07",
		Body:        []byte("hi"),
	})
	require.NoError(t, err)

	needle := []byte{
		txscript.OP_DATA_1, 0x01, txscript.OP_DATA_1, 0x07,
		txscript.OP_0,
	}
	require.True(t, bytes.Contains(script, needle))

	env, err := Parse(script)
	require.NoError(t, err)
	require.Equal(t, "\x07", env.ContentType)
	require.True(t, env.Parent.IsNone())

	_, err = BuildScript(testLeafKey.PubKey(), &Inscription{
		ContentType: "text/plain",
	})
	require.ErrorIs(t, err, ErrInvalidContent)
}

// TestNewPayment checks the single leaf commitment and its control block.
func TestNewPayment(t *testing.T) {
	t.Parallel()

	script, err := BuildScript(testLeafKey.PubKey(), &Inscription{
		ContentType: "text/plain;charset=utf-8",
		Body:        []byte("hello"),
	})
	require.NoError(t, err)

	payment, err := NewPayment(
		testInternal.PubKey(), script, &chaincfg.MainNetParams,
	)
	require.NoError(t, err)

	require.Equal(t, payment.LeafHash, payment.MerkleRoot)
	require.Equal(t, txscript.BaseLeafVersion, payment.Leaf.LeafVersion)
	require.True(t, strings.HasPrefix(payment.Address.String(), "bc1p"))

	// The control block must prove the leaf against the output key.
	controlBlock, err := txscript.ParseControlBlock(payment.ControlBlock)
	require.NoError(t, err)
	err = txscript.VerifyTaprootLeafCommitment(
		controlBlock, payment.PkScript[2:], script,
	)
	require.NoError(t, err)

	// Same inputs, same address.
	again, err := NewPayment(
		testInternal.PubKey(), script, &chaincfg.MainNetParams,
	)
	require.NoError(t, err)
	require.Equal(t, payment.PkScript, again.PkScript)

	_, err = NewPayment(nil, script, &chaincfg.MainNetParams)
	require.ErrorIs(t, err, ErrKeyDerivation)
}
