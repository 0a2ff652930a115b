package apierr

import "errors"

// Entry pairs the constructor and the predicate of one error kind.
type Entry struct {
	Kind Kind
	New  func(message string, cause error) *Error
	Is   func(err error) bool
}

// Catalog maps every kind to its entry.
var Catalog = map[Kind]Entry{
	KindConfig:              entry(KindConfig),
	KindStateMismatch:       entry(KindStateMismatch),
	KindAuthorizationDenied: entry(KindAuthorizationDenied),
	KindNetwork:             entry(KindNetwork),
	KindStorage:             entry(KindStorage),
	KindUnauthenticated:     entry(KindUnauthenticated),
}

func entry(kind Kind) Entry {
	sentinel := &Error{kind: kind}
	return Entry{
		Kind: kind,
		New: func(message string, cause error) *Error {
			return &Error{kind: kind, message: message, cause: cause}
		},
		Is: func(err error) bool { return errors.Is(err, sentinel) },
	}
}

// Kinds lists the catalog in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindConfig,
		KindStateMismatch,
		KindAuthorizationDenied,
		KindNetwork,
		KindStorage,
		KindUnauthenticated,
	}
}
