package forestkv

import "fmt"

// Kind classifies the failure categories spec §7 requires callers to be
// able to distinguish.
type Kind int

const (
	// KindIO covers file open/seek/read/write failures.
	KindIO Kind = iota
	// KindCorruption covers out-of-range slotted-page offsets and other
	// on-disk data that fails to decode.
	KindCorruption
	// KindTxViolation covers mutating calls issued on a read transaction.
	KindTxViolation
	// KindUninitialized covers access to a meta or freelist page that has
	// not yet been populated.
	KindUninitialized
	// KindOverPacked covers a node that would not fit in a page at
	// serialization time; this is always a programmer error in the split
	// policy, never a user-triggerable condition.
	KindOverPacked
	// KindConflict covers collection-name conflicts in the root collection:
	// a duplicate name at create time, an empty name at create time (the
	// empty name belongs to the root collection), and an attempt to delete
	// the root collection. Spec §4.9 does not mandate this category; it is
	// added because create_collection needs some failure signal for a
	// duplicate name (see DESIGN.md Open Questions).
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindCorruption:
		return "corruption"
	case KindTxViolation:
		return "tx-violation"
	case KindUninitialized:
		return "uninitialized"
	case KindOverPacked:
		return "over-packed"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is the single error type forestkv returns. It carries a Kind so
// callers can branch on category with errors.As without string matching.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("forestkv: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("forestkv: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func wrapErr(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Sentinel errors for the transaction-kind violations spec §7 and §4.10
// call out explicitly: a mutating call on a read transaction, and use of a
// transaction after it has ended.
var (
	ErrTxReadOnly       = newErr(KindTxViolation, "mutating call on a read-only transaction")
	ErrTxClosed         = newErr(KindTxViolation, "transaction already committed or rolled back")
	ErrCollectionExists = newErr(KindConflict, "collection already exists")
)
