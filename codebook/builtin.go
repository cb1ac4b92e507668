package codebook

import (
	"reflect"

	"github.com/arloliu/ringwire/buffer"
)

// Built-in identifiers.
const (
	BoolID   ID = 1
	Int32ID  ID = 2
	Int64ID  ID = 3
	StringID ID = 4
	BytesID  ID = 5
	ListID   ID = 16
)

var (
	boolTranslator = NewTyped(
		func(v bool, out *buffer.Output) error { out.WriteBool(v); return nil },
		func(in *buffer.Input) (bool, error) { return in.ReadBool() },
	)
	int32Translator = NewTyped(
		func(v int32, out *buffer.Output) error { out.WriteInt32(v); return nil },
		func(in *buffer.Input) (int32, error) { return in.ReadInt32() },
	)
	int64Translator = NewTyped(
		func(v int64, out *buffer.Output) error { out.WriteInt64(v); return nil },
		func(in *buffer.Input) (int64, error) { return in.ReadInt64() },
	)
	stringTranslator = NewTyped(
		func(v string, out *buffer.Output) error { return out.WriteString(v) },
		func(in *buffer.Input) (string, error) { return in.ReadString() },
	)
	bytesTranslator = NewTyped(
		func(v []byte, out *buffer.Output) error { return out.WriteByteArray(v) },
		func(in *buffer.Input) ([]byte, error) { return in.ReadByteArray() },
	)
)

func (b *CodeBook) registerBuiltins() error {
	builtins := []struct {
		id  ID
		t   Translator
		typ reflect.Type
	}{
		{BoolID, boolTranslator, reflect.TypeFor[bool]()},
		{Int32ID, int32Translator, reflect.TypeFor[int32]()},
		{Int64ID, int64Translator, reflect.TypeFor[int64]()},
		{StringID, stringTranslator, reflect.TypeFor[string]()},
		{BytesID, bytesTranslator, reflect.TypeFor[[]byte]()},
	}
	for _, bi := range builtins {
		if err := b.register(bi.id, bi.t, bi.typ, true); err != nil {
			return err
		}
	}

	list, err := NewListTranscoder(b, SliceKind[[]any]())
	if err != nil {
		return err
	}

	return b.register(ListID, list, reflect.TypeFor[[]any](), true)
}
