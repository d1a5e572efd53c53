package envelope

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// MaxChunkSize is the largest body push placed in an envelope, equal
	// to the consensus limit on a single stack element.
	MaxChunkSize = txscript.MaxScriptElementSize

	// tagContentType marks the content type field.
	tagContentType byte = 1

	// tagParent marks the parent provenance field.
	tagParent byte = 3
)

// protocolID is the marker pushed right after OP_IF.
var protocolID = []byte("ord")

// Inscription is the content committed to by an envelope.
type Inscription struct {
	// ContentType is written under tag 1.
	ContentType string

	// Body is split into pushes of at most MaxChunkSize bytes.
	Body []byte

	// Parent, if set, is written under tag 3 as a provenance locator.
	Parent fn.Option[InscriptionID]
}

// NewInscription pairs decoded data URL content with an optional parent.
func NewInscription(content *Content,
	parent fn.Option[InscriptionID]) *Inscription {

	return &Inscription{
		ContentType: content.ContentType,
		Body:        content.Body,
		Parent:      parent,
	}
}

// addByte pushes a single byte as OP_DATA_1 <b>. Regular data pushes would
// turn values 1 through 16 into the small integer opcodes.
func addByte(builder *txscript.ScriptBuilder, b byte) {
	builder.AddOp(txscript.OP_DATA_1).AddOp(b)
}

// BuildScript compiles the tapscript leaf that reveals the inscription:
//
//	<leaf xonly> OP_CHECKSIG OP_FALSE OP_IF "ord"
//	  01 <content type> [03 <parent locator>]
//	  OP_0 <body chunk>...
//	OP_ENDIF
func BuildScript(leafKey *btcec.PublicKey, insc *Inscription) ([]byte,
	error) {

	if len(insc.Body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidContent)
	}

	builder := txscript.NewScriptBuilder()
	builder.AddData(schnorr.SerializePubKey(leafKey))
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_FALSE)
	builder.AddOp(txscript.OP_IF)
	builder.AddData(protocolID)

	addByte(builder, tagContentType)
	contentType := []byte(insc.ContentType)
	if len(contentType) == 1 {
		addByte(builder, contentType[0])
	} else {
		builder.AddData(contentType)
	}

	insc.Parent.WhenSome(func(id InscriptionID) {
		addByte(builder, tagParent)
		builder.AddData(EncodeParentLocator(id))
	})

	builder.AddOp(txscript.OP_0)

	header, err := builder.Script()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	// The body is appended by hand since tapscript leaves are not bound
	// by the legacy script size limit enforced by the builder.
	var script bytes.Buffer
	script.Write(header)

	for start := 0; start < len(insc.Body); start += MaxChunkSize {
		end := start + MaxChunkSize
		if end > len(insc.Body) {
			end = len(insc.Body)
		}
		chunk := insc.Body[start:end]

		if end == len(insc.Body) && len(chunk) == 1 {
			script.Write([]byte{txscript.OP_DATA_1, chunk[0]})
			continue
		}

		push, err := txscript.NewScriptBuilder().
			AddFullData(chunk).Script()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent,
				err)
		}
		script.Write(push)
	}

	script.WriteByte(txscript.OP_ENDIF)

	log.Tracef("Compiled envelope of %d bytes, content_type=%s, "+
		"body=%d bytes", script.Len(), insc.ContentType, len(insc.Body))

	return script.Bytes(), nil
}

// Envelope is an inscription recovered from a compiled leaf script together
// with the key that guards it.
type Envelope struct {
	Inscription

	// LeafKey is the x-only key checked before the envelope.
	LeafKey []byte
}

// Parse decompiles a leaf script built by BuildScript. Body pushes must be
// data pushes: a small integer opcode in the body is rejected, as indexers
// would not read it back as content.
func Parse(script []byte) (*Envelope, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	next := func(what string) (byte, []byte, error) {
		if !tokenizer.Next() {
			if err := tokenizer.Err(); err != nil {
				return 0, nil, fmt.Errorf("%w: %v",
					ErrInvalidContent, err)
			}
			return 0, nil, fmt.Errorf("%w: missing %s",
				ErrInvalidContent, what)
		}
		return tokenizer.Opcode(), tokenizer.Data(), nil
	}
	expectOp := func(op byte, what string) error {
		got, _, err := next(what)
		if err != nil {
			return err
		}
		if got != op {
			return fmt.Errorf("%w: expected %s, got opcode 0x%02x",
				ErrInvalidContent, what, got)
		}
		return nil
	}

	env := &Envelope{}

	op, data, err := next("leaf key")
	if err != nil {
		return nil, err
	}
	if op != txscript.OP_DATA_32 {
		return nil, fmt.Errorf("%w: expected x-only leaf key",
			ErrInvalidContent)
	}
	env.LeafKey = data

	for _, step := range []struct {
		op   byte
		what string
	}{
		{txscript.OP_CHECKSIG, "OP_CHECKSIG"},
		{txscript.OP_FALSE, "OP_FALSE"},
		{txscript.OP_IF, "OP_IF"},
	} {
		if err := expectOp(step.op, step.what); err != nil {
			return nil, err
		}
	}

	_, data, err = next("protocol id")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(data, protocolID) {
		return nil, fmt.Errorf("%w: unknown protocol id %x",
			ErrInvalidContent, data)
	}

	// Fields are tag/value pairs up to the OP_0 body separator.
	for {
		op, tag, err := next("field tag")
		if err != nil {
			return nil, err
		}
		if op == txscript.OP_0 {
			break
		}
		if len(tag) != 1 {
			return nil, fmt.Errorf("%w: malformed field tag",
				ErrInvalidContent)
		}

		_, value, err := next("field value")
		if err != nil {
			return nil, err
		}

		switch tag[0] {
		case tagContentType:
			env.ContentType = string(value)

		case tagParent:
			id, err := DecodeParentLocator(value)
			if err != nil {
				return nil, err
			}
			env.Parent = fn.Some(id)

		default:
			log.Debugf("Skipping unknown envelope tag %d", tag[0])
		}
	}

	for {
		op, data, err := next("OP_ENDIF")
		if err != nil {
			return nil, err
		}
		if op == txscript.OP_ENDIF {
			break
		}
		if op > txscript.OP_PUSHDATA4 {
			return nil, fmt.Errorf("%w: non push opcode 0x%02x in "+
				"body", ErrInvalidContent, op)
		}
		env.Body = append(env.Body, data...)
	}

	if tokenizer.Next() {
		return nil, fmt.Errorf("%w: trailing data after envelope",
			ErrInvalidContent)
	}

	return env, nil
}
