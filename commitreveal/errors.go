package commitreveal

import "errors"

var (
	// ErrFundingFailed is returned when the commit transaction cannot be
	// funded. Nothing was broadcast.
	ErrFundingFailed = errors.New("commit funding failed")

	// ErrExternalSignatureDeclined is returned when the parent owner does
	// not sign the reveal. The commitment and the reveal draft stay
	// valid, so the same order can be retried.
	ErrExternalSignatureDeclined = errors.New("external signature declined")

	// ErrBroadcastFailed is returned when the data provider rejects a
	// transaction.
	ErrBroadcastFailed = errors.New("broadcast failed")

	// ErrCommitMismatch is returned when a journaled commit transaction
	// does not pay the commitment of the order.
	ErrCommitMismatch = errors.New("commit tx does not pay the commitment")

	// ErrOverspend is returned when a reveal pays out more than the
	// outputs it spends.
	ErrOverspend = errors.New("reveal outputs exceed its inputs")
)
