package lnutils

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
)

// LogClosure defers building a log argument until the line is actually
// formatted, so transaction dumps cost nothing at the default level.
type LogClosure func() string

// String builds the deferred value.
func (c LogClosure) String() string {
	return c()
}

// NewLogClosure wraps c as a fmt.Stringer.
func NewLogClosure(c func() string) LogClosure {
	return LogClosure(c)
}

// SpewLogClosure dumps a with spew, used for packets and decoded API
// responses at trace level.
func SpewLogClosure(a any) LogClosure {
	return func() string {
		return spew.Sdump(a)
	}
}

// TxHexLogClosure returns the hex serialization of a transaction, witness
// included, in a LogClosure.
func TxHexLogClosure(tx *wire.MsgTx) LogClosure {
	return func() string {
		var buf bytes.Buffer
		if err := tx.Serialize(&buf); err != nil {
			return "<unserializable tx: " + err.Error() + ">"
		}

		return hex.EncodeToString(buf.Bytes())
	}
}

// NewSeparatorClosure draws the line between the commit and reveal dumps.
func NewSeparatorClosure() LogClosure {
	return func() string {
		return strings.Repeat("=", 80)
	}
}
