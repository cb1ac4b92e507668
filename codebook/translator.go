package codebook

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/arloliu/ringwire/buffer"
	"github.com/arloliu/ringwire/errs"
)

// ID is a codebook type identifier carried on the wire as an int32.
type ID int32

const (
	// MaxReservedID is the highest identifier reserved for built-in types.
	MaxReservedID ID = 1024
	// MinApplicationID is the lowest identifier available to applications.
	MinApplicationID ID = MaxReservedID + 1
)

// Translator encodes and decodes values of a single Go type.
//
// Encode must only be called with values of the bound type. Decode must
// consume exactly the bytes Encode produced.
type Translator interface {
	Encode(v any, out *buffer.Output) error
	Decode(in *buffer.Input) (any, error)
}

// Translatable is implemented by types that declare their own codebook binding.
// It replaces discovery of a nested codec: the binding is explicit and unique.
type Translatable interface {
	CodebookID() ID
	Translator() Translator
}

// Typed adapts a pair of typed functions into a Translator for T.
type Typed[T any] struct {
	EncodeFunc func(v T, out *buffer.Output) error
	DecodeFunc func(in *buffer.Input) (T, error)
}

var _ Translator = Typed[int32]{}

// NewTyped builds a Typed translator.
func NewTyped[T any](enc func(v T, out *buffer.Output) error, dec func(in *buffer.Input) (T, error)) Typed[T] {
	return Typed[T]{EncodeFunc: enc, DecodeFunc: dec}
}

// Encode implements Translator.
func (t Typed[T]) Encode(v any, out *buffer.Output) error {
	tv, ok := v.(T)
	if !ok {
		return fmt.Errorf("%w: %T is not %s", errs.ErrEncoding, v, reflect.TypeFor[T]())
	}
	if err := t.EncodeFunc(tv, out); err != nil {
		return encodingError(err)
	}

	return nil
}

// Decode implements Translator.
func (t Typed[T]) Decode(in *buffer.Input) (any, error) {
	v, err := t.DecodeFunc(in)
	if err != nil {
		return nil, decodingError(err)
	}

	return v, nil
}

func encodingError(err error) error {
	if errors.Is(err, errs.ErrEncoding) {
		return err
	}

	return fmt.Errorf("%w: %w", errs.ErrEncoding, err)
}

func decodingError(err error) error {
	if errors.Is(err, errs.ErrDecoding) {
		return err
	}

	return fmt.Errorf("%w: %w", errs.ErrDecoding, err)
}
