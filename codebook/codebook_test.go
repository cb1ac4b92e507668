package codebook

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/ringwire/buffer"
	"github.com/arloliu/ringwire/errs"
)

type sample struct {
	Foo int32
	Bar string
}

var sampleTranslator = NewTyped(
	func(v sample, out *buffer.Output) error {
		out.WriteInt32(v.Foo)
		return out.WriteString(v.Bar)
	},
	func(in *buffer.Input) (sample, error) {
		foo, err := in.ReadInt32()
		if err != nil {
			return sample{}, err
		}
		bar, err := in.ReadString()
		if err != nil {
			return sample{}, err
		}

		return sample{Foo: foo, Bar: bar}, nil
	},
)

type point struct {
	X, Y int64
}

func (point) CodebookID() ID { return 1030 }

func (point) Translator() Translator {
	return NewTyped(
		func(v point, out *buffer.Output) error {
			out.WriteInt64(v.X)
			out.WriteInt64(v.Y)
			return nil
		},
		func(in *buffer.Input) (point, error) {
			x, err := in.ReadInt64()
			if err != nil {
				return point{}, err
			}
			y, err := in.ReadInt64()

			return point{X: x, Y: y}, err
		},
	)
}

type undeclared struct{}

func (undeclared) CodebookID() ID         { return 1031 }
func (undeclared) Translator() Translator { return nil }

func TestCodeBook_EndToEnd(t *testing.T) {
	book := New()
	require.NoError(t, Register[sample](book, 1025, sampleTranslator))
	book.Seal()

	original := sample{Foo: 17, Bar: "hello"}
	data, err := book.Marshal(original)
	require.NoError(t, err)

	expected := []byte{
		0x00, 0x00, 0x04, 0x01, // id 1025
		0x00, 0x00, 0x00, 0x11, // foo
		0x00, 0x00, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o',
	}
	require.Equal(t, expected, data)

	decoded, err := book.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

func TestCodeBook_BuiltinRoundTrip(t *testing.T) {
	book := New()

	values := []any{
		true,
		false,
		int32(-5),
		int32(1 << 30),
		int64(-1 << 40),
		"",
		"hello",
		[]byte{0, 1, 2, 255},
		[]any{int32(1), "two", true, int64(4)},
		[]any{},
		[]any(nil),
		[]any{[]any{"nested"}, []any(nil)},
	}
	for _, v := range values {
		data, err := book.Marshal(v)
		require.NoError(t, err, "marshal %#v", v)

		got, err := book.Unmarshal(data)
		require.NoError(t, err, "unmarshal %#v", v)
		require.Equal(t, v, got)
	}
}

func TestCodeBook_ReservedRange(t *testing.T) {
	book := New()
	typ := reflect.TypeFor[sample]()

	for id := ID(0); id <= MaxReservedID; id++ {
		err := book.RegisterTranslator(id, sampleTranslator, typ)
		require.ErrorIs(t, err, errs.ErrConfiguration, "id %d must be rejected", id)
	}
	require.ErrorIs(t, book.RegisterTranslator(-1, sampleTranslator, typ), errs.ErrConfiguration)

	require.NoError(t, book.RegisterTranslator(MinApplicationID, sampleTranslator, typ))

	translator, err := book.Lookup(1025)
	require.NoError(t, err)
	out := buffer.NewOutput(16)
	require.NoError(t, translator.Encode(sample{Foo: 1, Bar: "x"}, out))
	v, err := book.DecodeMessage(buffer.NewInput(append([]byte{0, 0, 4, 1}, out.Bytes()...)))
	require.NoError(t, err)
	require.Equal(t, sample{Foo: 1, Bar: "x"}, v)
}

func TestCodeBook_DuplicateBindings(t *testing.T) {
	book := New()
	require.NoError(t, Register[sample](book, 2000, sampleTranslator))

	err := Register[point](book, 2000, point{}.Translator())
	require.ErrorIs(t, err, errs.ErrConfiguration, "id already bound")

	err = Register[sample](book, 2001, sampleTranslator)
	require.ErrorIs(t, err, errs.ErrConfiguration, "type already bound")
}

func TestCodeBook_InvalidRegistration(t *testing.T) {
	book := New()
	require.ErrorIs(t, book.RegisterTranslator(2000, nil, reflect.TypeFor[sample]()), errs.ErrConfiguration)
	require.ErrorIs(t, book.RegisterTranslator(2000, sampleTranslator, nil), errs.ErrConfiguration)
}

func TestCodeBook_Seal(t *testing.T) {
	book := New()
	require.False(t, book.Sealed())
	book.Seal()
	book.Seal()
	require.True(t, book.Sealed())

	err := Register[sample](book, 1025, sampleTranslator)
	require.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = book.Lookup(StringID)
	require.NoError(t, err, "lookups keep working after seal")
}

func TestCodeBook_RegisterTranslatable(t *testing.T) {
	book := New()
	require.NoError(t, book.RegisterTranslatable(point{}))

	data, err := book.Marshal(point{X: 3, Y: -4})
	require.NoError(t, err)
	got, err := book.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, point{X: 3, Y: -4}, got)

	require.ErrorIs(t, book.RegisterTranslatable(undeclared{}), errs.ErrConfiguration)
	require.ErrorIs(t, book.RegisterTranslatable(nil), errs.ErrConfiguration)
}

func TestCodeBook_UnknownID(t *testing.T) {
	book := New()

	_, err := book.Lookup(4242)
	require.ErrorIs(t, err, errs.ErrUnknownCodebookID)

	_, err = book.Unmarshal([]byte{0, 0, 0x10, 0x92})
	require.ErrorIs(t, err, errs.ErrUnknownCodebookID)
}

func TestCodeBook_EncodeUnregisteredType(t *testing.T) {
	book := New()

	_, err := book.Marshal(sample{})
	require.ErrorIs(t, err, errs.ErrEncoding)

	_, err = book.Marshal(nil)
	require.ErrorIs(t, err, errs.ErrEncoding)

	_, err = book.Marshal(42)
	require.ErrorIs(t, err, errs.ErrEncoding, "plain int has no binding, only int32 and int64")
}

func TestCodeBook_DecodeErrors(t *testing.T) {
	book := New()
	require.NoError(t, Register[sample](book, 1025, sampleTranslator))

	data, err := book.Marshal(sample{Foo: 1, Bar: "abc"})
	require.NoError(t, err)

	_, err = book.Unmarshal(data[:len(data)-1])
	require.ErrorIs(t, err, errs.ErrDecoding)
	require.ErrorIs(t, err, errs.ErrBufferUnderflow)

	_, err = book.Unmarshal(append(data, 0))
	require.ErrorIs(t, err, errs.ErrDecoding, "trailing bytes")

	_, err = book.Unmarshal([]byte{0, 0})
	require.ErrorIs(t, err, errs.ErrDecoding)
}

func TestTyped_WrongType(t *testing.T) {
	book := New()
	translator, err := book.Lookup(Int32ID)
	require.NoError(t, err)

	err = translator.Encode("not an int32", buffer.NewOutput(8))
	require.ErrorIs(t, err, errs.ErrEncoding)
}

func TestCodeBook_IDs(t *testing.T) {
	book := New()
	require.NoError(t, Register[sample](book, 1025, sampleTranslator))

	require.Equal(t, []ID{BoolID, Int32ID, Int64ID, StringID, BytesID, ListID, 1025}, book.IDs())
}

func TestCodeBook_ConcurrentLookup(t *testing.T) {
	book := New()
	require.NoError(t, Register[sample](book, 1025, sampleTranslator))
	book.Seal()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int32) {
			defer wg.Done()
			for range 200 {
				data, err := book.Marshal(sample{Foo: n, Bar: "c"})
				assert.NoError(t, err)
				v, err := book.Unmarshal(data)
				assert.NoError(t, err)
				assert.Equal(t, sample{Foo: n, Bar: "c"}, v)
			}
		}(int32(i))
	}
	wg.Wait()
}

func TestCodeBook_LookupDuringRegistration(t *testing.T) {
	book := New()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 500 {
			_, err := book.Lookup(StringID)
			assert.NoError(t, err)
		}
	}()
	require.NoError(t, Register[sample](book, 1025, sampleTranslator))
	require.NoError(t, book.RegisterTranslatable(point{}))
	wg.Wait()

	_, err := book.Lookup(1030)
	require.NoError(t, err)
}
