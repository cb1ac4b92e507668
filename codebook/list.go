package codebook

import (
	"fmt"
	"math"
	"reflect"

	"github.com/arloliu/ringwire/buffer"
	"github.com/arloliu/ringwire/errs"
)

// ListKind describes how a ListTranscoder rebuilds a decoded list of type L.
//
// WithCapacity is preferred when set; New is the fallback. A kind offering
// neither is rejected when the transcoder is configured.
type ListKind[L any] struct {
	Name         string
	WithCapacity func(n int) L
	New          func() L
}

// SliceKind returns the kind of a slice type, sized with make.
func SliceKind[L ~[]E, E any]() ListKind[L] {
	return ListKind[L]{
		Name:         reflect.TypeFor[L]().String(),
		WithCapacity: func(n int) L { return make(L, 0, n) },
	}
}

// ListTranscoder encodes an ordered collection of elements.
//
// Wire layout:
//
//	bool   isNull
//	int32  length          (absent when isNull)
//	message element[length]
//
// Each element is written as a full message, resolving its translator from
// the CodeBook by the element's runtime type rather than by E, so lists of
// interface element types may mix any registered types. Nil elements are not
// encodable.
type ListTranscoder[L ~[]E, E any] struct {
	book *CodeBook
	kind ListKind[L]
}

var _ Translator = (*ListTranscoder[[]any, any])(nil)

// NewListTranscoder configures a transcoder for lists of kind.
func NewListTranscoder[L ~[]E, E any](book *CodeBook, kind ListKind[L]) (*ListTranscoder[L, E], error) {
	if book == nil {
		return nil, fmt.Errorf("%w: list transcoder needs a codebook", errs.ErrConfiguration)
	}
	if kind.WithCapacity == nil && kind.New == nil {
		name := kind.Name
		if name == "" {
			name = reflect.TypeFor[L]().String()
		}

		return nil, fmt.Errorf("%w: list kind %s has neither a sized nor a default constructor",
			errs.ErrConfiguration, name)
	}

	return &ListTranscoder[L, E]{book: book, kind: kind}, nil
}

// Encode implements Translator.
func (t *ListTranscoder[L, E]) Encode(v any, out *buffer.Output) error {
	if v == nil {
		out.WriteNullFlag(true)
		return nil
	}
	list, ok := v.(L)
	if !ok {
		return fmt.Errorf("%w: %T is not %s", errs.ErrEncoding, v, reflect.TypeFor[L]())
	}
	if list == nil {
		out.WriteNullFlag(true)
		return nil
	}
	if len(list) > math.MaxInt32 {
		return fmt.Errorf("%w: list length %d exceeds int32", errs.ErrEncoding, len(list))
	}

	out.WriteNullFlag(false)
	out.WriteInt32(int32(len(list))) //nolint:gosec
	for i, elem := range list {
		if err := t.book.EncodeMessage(elem, out); err != nil {
			return fmt.Errorf("list element %d: %w", i, err)
		}
	}

	return nil
}

// Decode implements Translator.
func (t *ListTranscoder[L, E]) Decode(in *buffer.Input) (any, error) {
	isNull, err := in.ReadNullFlag()
	if err != nil {
		return nil, decodingError(err)
	}
	if isNull {
		var null L
		return null, nil
	}

	n, err := in.ReadInt32()
	if err != nil {
		return nil, decodingError(err)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative list length %d", errs.ErrDecoding, n)
	}
	// every element carries at least its 4-byte id
	if int(n) > in.Remaining()/4 {
		return nil, fmt.Errorf("%w: %w: list length %d exceeds %d remaining bytes",
			errs.ErrDecoding, errs.ErrBufferUnderflow, n, in.Remaining())
	}

	list := t.newList(int(n))
	for i := range int(n) {
		v, err := t.book.DecodeMessage(in)
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		elem, ok := v.(E)
		if !ok {
			return nil, fmt.Errorf("%w: list element %d: %T is not %s",
				errs.ErrDecoding, i, v, reflect.TypeFor[E]())
		}
		list = append(list, elem)
	}

	return list, nil
}

func (t *ListTranscoder[L, E]) newList(n int) L {
	if t.kind.WithCapacity != nil {
		return t.kind.WithCapacity(n)
	}

	return t.kind.New()
}
