package rpc

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/arloliu/ringwire/buffer"
	"github.com/arloliu/ringwire/codebook"
	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/internal/pool"
)

type envelope struct {
	id      uuid.UUID
	isError bool
	errMsg  string
	body    any
}

func encodeEnvelope(book *codebook.CodeBook, env envelope) ([]byte, error) {
	out := pool.GetMessageBuffer()
	defer pool.PutMessageBuffer(out)

	out.WriteRaw(env.id[:])
	out.WriteBool(env.isError)
	if env.isError {
		if err := out.WriteString(env.errMsg); err != nil {
			return nil, err
		}
	} else if err := book.EncodeMessage(env.body, out); err != nil {
		return nil, err
	}

	return out.Clone(), nil
}

func decodeEnvelope(book *codebook.CodeBook, b []byte) (envelope, error) {
	in := buffer.NewInput(b)

	raw, err := in.Next(len(uuid.UUID{}))
	if err != nil {
		return envelope{}, fmt.Errorf("%w: envelope id: %w", errs.ErrDecoding, err)
	}
	var env envelope
	copy(env.id[:], raw)

	if env.isError, err = in.ReadBool(); err != nil {
		return envelope{}, fmt.Errorf("%w: envelope flag: %w", errs.ErrDecoding, err)
	}
	if env.isError {
		if env.errMsg, err = in.ReadString(); err != nil {
			return envelope{}, fmt.Errorf("%w: envelope error: %w", errs.ErrDecoding, err)
		}
	} else if env.body, err = book.DecodeMessage(in); err != nil {
		return envelope{}, err
	}
	if in.Remaining() != 0 {
		return envelope{}, fmt.Errorf("%w: %d trailing bytes after envelope", errs.ErrDecoding, in.Remaining())
	}

	return env, nil
}
