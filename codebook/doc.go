// Package codebook maps numeric type identifiers to the translators that
// encode and decode values of those types.
//
// # Registration
//
// A CodeBook is constructed once at startup, populated during an explicit
// registration phase, and sealed before concurrent use:
//
//	book := codebook.New()
//	if err := codebook.Register[Order](book, 1025, orderTranslator); err != nil {
//	    return err
//	}
//	book.Seal()
//
// Identifiers 0 through 1024 are reserved for built-in types and are rejected
// for application registration with errs.ErrConfiguration. Each id and each
// Go type is bound at most once.
//
// Built-in bindings:
//
//	1   bool
//	2   int32
//	3   int64
//	4   string
//	5   []byte
//	16  []any (list of elements of any registered type)
//
// # Messages
//
// A message is the int32 codebook id of the value's runtime type followed by
// the translator's encoding of the value. DecodeMessage reads the id, resolves
// the translator in O(1) and decodes; an unregistered id fails with
// errs.ErrUnknownCodebookID.
//
// # Thread Safety
//
// Lookups never take a lock: registration publishes a new immutable snapshot
// of the tables. Registration itself is serialized and must complete before
// Seal; after Seal every registration fails.
package codebook
