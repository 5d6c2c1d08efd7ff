package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes envelopes for the wire
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary rather than text
	Binary() bool
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// CodecByName returns the codec registered under name ("json" or "msgpack")
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// DecodePayload converts a generically decoded payload into a typed struct
// by re-encoding it with the same codec.
func DecodePayload(c Codec, payload interface{}, v interface{}) error {
	if payload == nil {
		return fmt.Errorf("missing payload")
	}
	data, err := c.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to re-encode payload: %w", err)
	}
	if err := c.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// JSONCodec encodes text frames with encoding/json
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// MsgpackCodec encodes binary frames with MessagePack, reusing the json
// struct tags so both codecs share field names.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Unmarshal(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
