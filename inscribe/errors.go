package inscribe

import "errors"

var (
	// ErrUnsupportedAddressType is returned when the parent address is
	// none of P2TR, P2WPKH, P2PKH or P2SH.
	ErrUnsupportedAddressType = errors.New("unsupported parent address " +
		"type")

	// ErrMultiFileOrder is returned for orders carrying more than one
	// file. Only the first file is ever committed to by the reveal
	// transaction.
	ErrMultiFileOrder = errors.New("orders with more than one file are " +
		"not supported")

	// ErrNoFiles is returned for orders without files.
	ErrNoFiles = errors.New("order has no files")

	// ErrMissingParentTx is returned when a legacy or nested segwit
	// parent comes without the transaction that created it.
	ErrMissingParentTx = errors.New("parent raw transaction required")

	// ErrInvalidOrder is returned for orders missing mandatory fields.
	ErrInvalidOrder = errors.New("invalid inscription order")
)
