package cryptox

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/common"
)

const (
	envelopeTag     = "$enc"
	envelopeVersion = "v1"
)

// Record is a JSON-shaped record whose top-level fields may be sealed.
type Record map[string]any

// EncryptedField replaces a sensitive plaintext value before it crosses the
// persistence boundary.
type EncryptedField struct {
	Ciphertext  []byte
	IV          []byte
	EncryptedAt time.Time
}

type envelope struct {
	Tag         string    `json:"$enc"`
	Ciphertext  []byte    `json:"ct"`
	IV          []byte    `json:"iv"`
	EncryptedAt time.Time `json:"at"`
}

// MarshalJSON writes the tagged envelope form.
func (f EncryptedField) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{
		Tag:         envelopeVersion,
		Ciphertext:  f.Ciphertext,
		IV:          f.IV,
		EncryptedAt: f.EncryptedAt,
	})
}

// UnmarshalJSON reads the tagged envelope form.
func (f *EncryptedField) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	if env.Tag != envelopeVersion {
		return fmt.Errorf("unsupported envelope version %q", env.Tag)
	}
	f.Ciphertext = env.Ciphertext
	f.IV = env.IV
	f.EncryptedAt = env.EncryptedAt
	return nil
}

// IsSealed reports whether v is an encrypted field, either in memory or in
// the decoded JSON envelope form.
func IsSealed(v any) bool {
	switch t := v.(type) {
	case EncryptedField, *EncryptedField:
		return true
	case map[string]any:
		_, ok := t[envelopeTag]
		return ok
	default:
		return false
	}
}

// EncryptRecord returns a copy of record with every present field named in
// sensitive replaced by an EncryptedField. Fields that are already sealed are
// left as they are. The input record is not modified.
func (e *FieldEncryptor) EncryptRecord(record Record, sensitive []string) (Record, error) {
	out := make(Record, len(record))
	for k, v := range record {
		out[k] = v
	}
	for _, name := range sensitive {
		v, ok := out[name]
		if !ok || IsSealed(v) {
			continue
		}
		field, err := e.Encrypt(v)
		if err != nil {
			return nil, fmt.Errorf("encrypt field %q: %w", name, err)
		}
		out[name] = field
	}
	return out, nil
}

// DecryptRecord returns a copy of record with every sealed field opened.
// Plaintext fields pass through, which lets legacy rows be read during a
// migration. A sealed field that cannot be opened fails the whole call with
// *DecryptionError naming the field.
func (e *FieldEncryptor) DecryptRecord(record Record) (Record, error) {
	out := make(Record, len(record))
	for k, v := range record {
		if !IsSealed(v) {
			out[k] = v
			continue
		}
		field, err := toField(v)
		if err != nil {
			return nil, &DecryptionError{Field: k, Cause: err}
		}
		var plain any
		if err := e.Decrypt(field, &plain); err != nil {
			var de *DecryptionError
			if errors.As(err, &de) {
				de.Field = k
				return nil, de
			}
			return nil, &DecryptionError{Field: k, Cause: err}
		}
		out[k] = plain
	}
	return out, nil
}

func toField(v any) (EncryptedField, error) {
	switch t := v.(type) {
	case EncryptedField:
		return t, nil
	case *EncryptedField:
		if t == nil {
			return EncryptedField{}, errors.New("nil envelope")
		}
		return *t, nil
	case map[string]any:
		tag, _ := t[envelopeTag].(string)
		if tag != envelopeVersion {
			return EncryptedField{}, fmt.Errorf("unsupported envelope version %q", tag)
		}
		ct, err := decodeB64(t["ct"])
		if err != nil {
			return EncryptedField{}, fmt.Errorf("ciphertext: %w", err)
		}
		iv, err := decodeB64(t["iv"])
		if err != nil {
			return EncryptedField{}, fmt.Errorf("iv: %w", err)
		}
		var at time.Time
		if s, ok := t["at"].(string); ok {
			at, _ = time.Parse(time.RFC3339Nano, s)
		}
		return EncryptedField{Ciphertext: ct, IV: iv, EncryptedAt: at}, nil
	default:
		return EncryptedField{}, fmt.Errorf("unexpected envelope type %T", v)
	}
}

func decodeB64(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, errors.New("missing")
	}
	return base64.StdEncoding.DecodeString(s)
}

// SecureWipe overwrites the buffers of the named fields (every sealed field
// when no names are given) and drops the references from record. Use it on
// records slated for deletion once they are no longer needed.
func SecureWipe(record Record, fields ...string) {
	if len(fields) == 0 {
		for k, v := range record {
			if IsSealed(v) {
				fields = append(fields, k)
			}
		}
	}
	for _, name := range fields {
		v, ok := record[name]
		if !ok {
			continue
		}
		wipeValue(v)
		delete(record, name)
	}
}

func wipeValue(v any) {
	switch t := v.(type) {
	case []byte:
		common.WipeByteArray(t)
	case json.RawMessage:
		common.WipeByteArray(t)
	case EncryptedField:
		common.WipeByteArray(t.Ciphertext)
		common.WipeByteArray(t.IV)
	case *EncryptedField:
		if t != nil {
			common.WipeByteArray(t.Ciphertext)
			common.WipeByteArray(t.IV)
			t.Ciphertext, t.IV = nil, nil
		}
	case map[string]any:
		for k, inner := range t {
			wipeValue(inner)
			delete(t, k)
		}
	case []any:
		for i := range t {
			wipeValue(t[i])
			t[i] = nil
		}
	}
}
