// Package server exposes the evaluator over HTTP. Requests and responses
// are CBOR messages (canonical encoding, integer keys); each session owns
// an evaluator and therefore its own memo tables and entropy stream.
package server

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("server: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// EvalRequest asks for the evaluation of one [subject formula] noun,
// given either in wire form or in surface text. Without a session ID the
// evaluation runs on a fresh throwaway evaluator.
type EvalRequest struct {
	Session    string `cbor:"1,keyasint,omitempty"`
	Expression []byte `cbor:"2,keyasint,omitempty"` // encoded noun
	Text       string `cbor:"3,keyasint,omitempty"` // surface text alternative
}

// EvalResponse carries the product in both forms, or the failure.
type EvalResponse struct {
	Result []byte `cbor:"1,keyasint,omitempty"` // encoded noun
	Text   string `cbor:"2,keyasint,omitempty"`
	Error  string `cbor:"3,keyasint,omitempty"`
}

// EncodeRequest converts surface text to wire form.
type EncodeRequest struct {
	Text string `cbor:"1,keyasint"`
}

// EncodeResponse carries the wire form, or the failure.
type EncodeResponse struct {
	Data  []byte `cbor:"1,keyasint,omitempty"`
	Error string `cbor:"2,keyasint,omitempty"`
}

// DecodeRequest converts wire form to surface text.
type DecodeRequest struct {
	Data []byte `cbor:"1,keyasint"`
}

// DecodeResponse carries the surface text, or the failure.
type DecodeResponse struct {
	Text  string `cbor:"1,keyasint,omitempty"`
	Error string `cbor:"2,keyasint,omitempty"`
}

// CreateSessionRequest opens a session with an optional display name.
type CreateSessionRequest struct {
	Name string `cbor:"1,keyasint,omitempty"`
}

// CreateSessionResponse returns the new session's ID.
type CreateSessionResponse struct {
	ID   string `cbor:"1,keyasint"`
	Name string `cbor:"2,keyasint,omitempty"`
}

// DestroySessionRequest closes a session and drops its memo tables.
type DestroySessionRequest struct {
	ID string `cbor:"1,keyasint"`
}

// DestroySessionResponse reports whether the session existed.
type DestroySessionResponse struct {
	Existed bool `cbor:"1,keyasint"`
}

// MarshalMessage serializes any wire message to CBOR bytes.
func MarshalMessage(m any) ([]byte, error) {
	return cborEncMode.Marshal(m)
}

// UnmarshalMessage deserializes a wire message from CBOR bytes.
func UnmarshalMessage(data []byte, m any) error {
	if err := cbor.Unmarshal(data, m); err != nil {
		return fmt.Errorf("server: unmarshal message: %w", err)
	}
	return nil
}
