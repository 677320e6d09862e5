package entity

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// formatVersion is written into every encoded list. Bump it when the wire
// entity changes incompatibly.
const formatVersion = 1

// The stored form of a List. Field keys are kept short since a key is
// repeated for every entity.
type envelope struct {
	Version  uint         `cbor:"v"`
	Entities []wireEntity `cbor:"e"`
}

type wireEntity struct {
	MimeType   string `cbor:"m"`
	Encoding   string `cbor:"c,omitempty"`
	Body       []byte `cbor:"b,omitempty"`
	RedirectTo string `cbor:"r,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core Deterministic Encoding: the same list always gives the same
	// bytes.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("entity: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("entity: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode returns the stored form of l. The list must be non-empty and every
// entity must validate.
func (l List) Encode() ([]byte, error) {
	if len(l) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "encoding empty list")
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	env := envelope{
		Version:  formatVersion,
		Entities: make([]wireEntity, len(l)),
	}
	for i, e := range l {
		env.Entities[i] = wireEntity{
			MimeType:   e.MimeType,
			Encoding:   e.Encoding,
			Body:       e.Body,
			RedirectTo: e.RedirectTo,
		}
	}
	return encMode.Marshal(env)
}

// Decode parses bytes produced by Encode. Any failure, including an empty
// list or an entity which does not validate, is reported as ErrCorrupt.
func Decode(data []byte) (List, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	if env.Version != formatVersion {
		return nil, errors.Wrapf(ErrCorrupt, "unknown format version %d", env.Version)
	}
	if len(env.Entities) == 0 {
		return nil, errors.Wrap(ErrCorrupt, "stored list is empty")
	}
	result := make(List, len(env.Entities))
	for i, w := range env.Entities {
		result[i] = Entity{
			MimeType:   w.MimeType,
			Encoding:   w.Encoding,
			Body:       w.Body,
			RedirectTo: w.RedirectTo,
		}
	}
	if err := result.Validate(); err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	return result, nil
}
