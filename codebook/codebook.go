package codebook

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/arloliu/ringwire/buffer"
	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/internal/options"
	"github.com/arloliu/ringwire/internal/pool"
)

type entry struct {
	id         ID
	translator Translator
	typ        reflect.Type
}

// tables is an immutable lookup snapshot. Registration replaces it whole.
type tables struct {
	byID   map[ID]*entry
	byType map[reflect.Type]*entry
}

// CodeBook is the registry of translators keyed by codebook id and by Go type.
type CodeBook struct {
	mu     sync.Mutex
	tables atomic.Pointer[tables]
	sealed atomic.Bool
	logger *zap.Logger
}

type config struct {
	logger *zap.Logger
}

// Option configures a CodeBook.
type Option = options.Option[*config]

// WithLogger sets the logger used to report registrations.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// New creates a CodeBook holding the built-in translators.
func New(opts ...Option) *CodeBook {
	cfg := config{logger: zap.NewNop()}
	// codebook options cannot fail
	_ = options.Apply(&cfg, opts...)

	b := &CodeBook{logger: cfg.logger}
	b.tables.Store(&tables{
		byID:   make(map[ID]*entry),
		byType: make(map[reflect.Type]*entry),
	})
	if err := b.registerBuiltins(); err != nil {
		panic(fmt.Sprintf("codebook: failed to register built-in translators: %v", err))
	}

	return b
}

// RegisterTranslator binds translator to id for values of type typ.
//
// It fails with errs.ErrConfiguration when id is reserved ([0, 1024] or
// negative), when id or typ is already bound, when translator or typ is nil,
// or when the book is sealed.
//
// Parameters:
//   - id: Application codebook id, MinApplicationID or above
//   - translator: Encoder and decoder for values of typ
//   - typ: Exact runtime type resolved by LookupValue
//
// Returns:
//   - error: errs.ErrConfiguration on an invalid or conflicting binding
func (b *CodeBook) RegisterTranslator(id ID, translator Translator, typ reflect.Type) error {
	return b.register(id, translator, typ, false)
}

// Register binds translator to id for values of the concrete type T.
func Register[T any](b *CodeBook, id ID, translator Translator) error {
	return b.RegisterTranslator(id, translator, reflect.TypeFor[T]())
}

// RegisterTranslatable binds the translator and id declared by sample's type.
func (b *CodeBook) RegisterTranslatable(sample Translatable) error {
	if sample == nil {
		return fmt.Errorf("%w: nil translatable", errs.ErrConfiguration)
	}
	typ := reflect.TypeOf(sample)
	translator := sample.Translator()
	if translator == nil {
		return fmt.Errorf("%w: %s declares no translator", errs.ErrConfiguration, typ)
	}

	return b.register(sample.CodebookID(), translator, typ, false)
}

// RegisterList binds a ListTranscoder for the list type L to id.
func RegisterList[L ~[]E, E any](b *CodeBook, id ID, kind ListKind[L]) error {
	list, err := NewListTranscoder(b, kind)
	if err != nil {
		return err
	}

	return b.RegisterTranslator(id, list, reflect.TypeFor[L]())
}

func (b *CodeBook) register(id ID, translator Translator, typ reflect.Type, builtin bool) error {
	if b.sealed.Load() {
		return fmt.Errorf("%w: codebook is sealed, cannot register id %d", errs.ErrConfiguration, id)
	}
	if translator == nil {
		return fmt.Errorf("%w: nil translator for id %d", errs.ErrConfiguration, id)
	}
	if typ == nil {
		return fmt.Errorf("%w: nil type for id %d", errs.ErrConfiguration, id)
	}
	if !builtin && id < MinApplicationID {
		return fmt.Errorf("%w: codebook id %d is reserved, application ids start at %d",
			errs.ErrConfiguration, id, MinApplicationID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed.Load() {
		return fmt.Errorf("%w: codebook is sealed, cannot register id %d", errs.ErrConfiguration, id)
	}

	cur := b.tables.Load()
	if prev, ok := cur.byID[id]; ok {
		return fmt.Errorf("%w: codebook id %d already bound to %s", errs.ErrConfiguration, id, prev.typ)
	}
	if prev, ok := cur.byType[typ]; ok {
		return fmt.Errorf("%w: type %s already bound to id %d", errs.ErrConfiguration, typ, prev.id)
	}

	next := &tables{
		byID:   make(map[ID]*entry, len(cur.byID)+1),
		byType: make(map[reflect.Type]*entry, len(cur.byType)+1),
	}
	for k, v := range cur.byID {
		next.byID[k] = v
	}
	for k, v := range cur.byType {
		next.byType[k] = v
	}
	e := &entry{id: id, translator: translator, typ: typ}
	next.byID[id] = e
	next.byType[typ] = e
	b.tables.Store(next)

	if !builtin {
		b.logger.Debug("codebook translator registered",
			zap.Int32("id", int32(id)), zap.Stringer("type", typ))
	}

	return nil
}

// Seal ends the registration phase. It is idempotent.
func (b *CodeBook) Seal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed.Swap(true) {
		return
	}
	b.logger.Info("codebook sealed", zap.Int("translators", len(b.tables.Load().byID)))
}

// Sealed reports whether Seal has been called.
func (b *CodeBook) Sealed() bool {
	return b.sealed.Load()
}

// Lookup returns the translator bound to id.
func (b *CodeBook) Lookup(id ID) (Translator, error) {
	e, ok := b.tables.Load().byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", errs.ErrUnknownCodebookID, id)
	}

	return e.translator, nil
}

// LookupValue resolves the id and translator for the runtime type of v.
func (b *CodeBook) LookupValue(v any) (ID, Translator, error) {
	if v == nil {
		return 0, nil, fmt.Errorf("%w: cannot resolve a translator for nil", errs.ErrEncoding)
	}
	typ := reflect.TypeOf(v)
	e, ok := b.tables.Load().byType[typ]
	if !ok {
		return 0, nil, fmt.Errorf("%w: no translator registered for %s", errs.ErrEncoding, typ)
	}

	return e.id, e.translator, nil
}

// IDs returns the bound identifiers in ascending order.
func (b *CodeBook) IDs() []ID {
	byID := b.tables.Load().byID
	ids := make([]ID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// EncodeMessage writes v as a message: its codebook id followed by its encoding.
func (b *CodeBook) EncodeMessage(v any, out *buffer.Output) error {
	id, translator, err := b.LookupValue(v)
	if err != nil {
		return err
	}
	out.WriteInt32(int32(id))

	return translator.Encode(v, out)
}

// DecodeMessage reads one message written by EncodeMessage.
func (b *CodeBook) DecodeMessage(in *buffer.Input) (any, error) {
	raw, err := in.ReadInt32()
	if err != nil {
		return nil, decodingError(fmt.Errorf("read codebook id: %w", err))
	}
	translator, err := b.Lookup(ID(raw))
	if err != nil {
		return nil, err
	}

	return translator.Decode(in)
}

// Marshal encodes v as a standalone message and returns a copy of its bytes.
//
// Parameters:
//   - v: Value whose runtime type is bound in the book
//
// Returns:
//   - []byte: Codebook id followed by the encoding of v
//   - error: errs.ErrEncoding for an unbound type or a translator failure
func (b *CodeBook) Marshal(v any) ([]byte, error) {
	out := pool.GetMessageBuffer()
	defer pool.PutMessageBuffer(out)

	if err := b.EncodeMessage(v, out); err != nil {
		return nil, err
	}

	return out.Clone(), nil
}

// Unmarshal decodes a standalone message. Trailing bytes are rejected.
func (b *CodeBook) Unmarshal(data []byte) (any, error) {
	in := buffer.NewInput(data)
	v, err := b.DecodeMessage(in)
	if err != nil {
		return nil, err
	}
	if in.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after message", errs.ErrDecoding, in.Remaining())
	}

	return v, nil
}
