package sessionstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/tlv"
	bolt "go.etcd.io/bbolt"
)

var (
	// sessionBucket holds one serialized session per commitment address.
	sessionBucket = []byte("commit-reveal-sessions")

	// ErrSessionNotFound is returned when no session is recorded under
	// the requested commitment address.
	ErrSessionNotFound = errors.New("session not found")
)

const (
	stateType      tlv.Type = 0
	commitTxType   tlv.Type = 1
	revealType     tlv.Type = 2
	createdAtType  tlv.Type = 3
	revealTxidType tlv.Type = 4
)

// State is the broadcast progress of a commit/reveal session.
type State uint8

const (
	// StateCommitSigned means the commit transaction is signed but has not
	// been broadcast.
	StateCommitSigned State = iota

	// StateCommitPublished means the commit transaction was accepted by
	// the data provider.
	StateCommitPublished

	// StateRevealPublished means both transactions were broadcast.
	StateRevealPublished
)

// String returns a human readable name of the state.
func (s State) String() string {
	switch s {
	case StateCommitSigned:
		return "CommitSigned"
	case StateCommitPublished:
		return "CommitPublished"
	case StateRevealPublished:
		return "RevealPublished"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// Session is the journal entry of one order, keyed by its commitment
// address.
type Session struct {
	// CommitAddress is the encoded commitment address.
	CommitAddress string

	// State tracks which transactions were broadcast.
	State State

	// CommitTx is the fully signed commit transaction.
	CommitTx *wire.MsgTx

	// Reveal is the serialized reveal draft. It is empty until the reveal
	// has been assembled.
	Reveal []byte

	// RevealTxid is set once the reveal was broadcast.
	RevealTxid [32]byte

	// CreatedAt is the time the session was first recorded.
	CreatedAt time.Time
}

// Store is a bbolt backed session journal.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the session journal at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open session db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to create session bucket: %w",
			err)
	}

	log.Debugf("Opened session journal at %v", path)

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes the session, replacing any previous entry for the same
// commitment address.
func (s *Store) Put(session *Session) error {
	if session.CommitAddress == "" {
		return errors.New("session has no commitment address")
	}

	var b bytes.Buffer
	if err := serializeSession(&b, session); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Put(
			[]byte(session.CommitAddress), b.Bytes(),
		)
	})
	if err != nil {
		return fmt.Errorf("unable to store session: %w", err)
	}

	log.Debugf("Stored session %v in state %v", session.CommitAddress,
		session.State)

	return nil
}

// Fetch returns the session recorded under the commitment address.
func (s *Store) Fetch(commitAddr string) (*Session, error) {
	var session *Session
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(sessionBucket).Get([]byte(commitAddr))
		if v == nil {
			return ErrSessionNotFound
		}

		var err error
		session, err = deserializeSession(bytes.NewReader(v))
		return err
	})
	if err != nil {
		return nil, err
	}
	session.CommitAddress = commitAddr

	return session, nil
}

// MarkState moves a recorded session to a new state. The optional reveal
// txid is stored when non zero.
func (s *Store) MarkState(commitAddr string, state State,
	revealTxid [32]byte) error {

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionBucket)

		v := bucket.Get([]byte(commitAddr))
		if v == nil {
			return ErrSessionNotFound
		}

		session, err := deserializeSession(bytes.NewReader(v))
		if err != nil {
			return err
		}

		if state < session.State {
			return fmt.Errorf("session %v cannot move from %v "+
				"back to %v", commitAddr, session.State, state)
		}
		session.State = state
		if revealTxid != [32]byte{} {
			session.RevealTxid = revealTxid
		}

		var b bytes.Buffer
		if err := serializeSession(&b, session); err != nil {
			return err
		}

		log.Debugf("Session %v moved to %v", commitAddr, state)

		return bucket.Put([]byte(commitAddr), b.Bytes())
	})
}

func serializeSession(w io.Writer, session *Session) error {
	var commitTx []byte
	if session.CommitTx != nil {
		var b bytes.Buffer
		if err := session.CommitTx.Serialize(&b); err != nil {
			return err
		}
		commitTx = b.Bytes()
	}

	var (
		state     = uint8(session.State)
		reveal    = session.Reveal
		createdAt = uint64(session.CreatedAt.Unix())
		txid      = session.RevealTxid
	)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(stateType, &state),
		tlv.MakePrimitiveRecord(commitTxType, &commitTx),
		tlv.MakePrimitiveRecord(revealType, &reveal),
		tlv.MakePrimitiveRecord(createdAtType, &createdAt),
		tlv.MakePrimitiveRecord(revealTxidType, &txid),
	)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

func deserializeSession(r io.Reader) (*Session, error) {
	var (
		state     uint8
		commitTx  []byte
		reveal    []byte
		createdAt uint64
		txid      [32]byte
	)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(stateType, &state),
		tlv.MakePrimitiveRecord(commitTxType, &commitTx),
		tlv.MakePrimitiveRecord(revealType, &reveal),
		tlv.MakePrimitiveRecord(createdAtType, &createdAt),
		tlv.MakePrimitiveRecord(revealTxidType, &txid),
	)
	if err != nil {
		return nil, err
	}

	if err := stream.Decode(r); err != nil {
		return nil, err
	}

	session := &Session{
		State:      State(state),
		RevealTxid: txid,
		CreatedAt:  time.Unix(int64(createdAt), 0),
	}
	if len(reveal) > 0 {
		session.Reveal = reveal
	}
	if len(commitTx) > 0 {
		session.CommitTx = wire.NewMsgTx(wire.TxVersion)
		err := session.CommitTx.Deserialize(bytes.NewReader(commitTx))
		if err != nil {
			return nil, fmt.Errorf("invalid commit tx: %w", err)
		}
	}

	return session, nil
}
