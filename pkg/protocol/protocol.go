// Package protocol defines control message framing.
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

// MaxControlMessage is the maximum control message size (64KB).
const MaxControlMessage = 65536

var ErrMessageTooLarge = errors.New("protocol: message too large")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal encodes a control message as a single JSON document.
func Marshal(msg *pb.ControlMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "protocol: marshal")
	}
	if len(data) > MaxControlMessage {
		return nil, errors.Wrapf(ErrMessageTooLarge, "%d bytes", len(data))
	}
	return data, nil
}

// Unmarshal decodes a single JSON control message.
func Unmarshal(data []byte) (*pb.ControlMessage, error) {
	if len(data) > MaxControlMessage {
		return nil, errors.Wrapf(ErrMessageTooLarge, "%d bytes", len(data))
	}
	msg := &pb.ControlMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, errors.Wrap(err, "protocol: unmarshal")
	}
	return msg, nil
}

// WriteControlMessage writes a length-prefixed JSON control message to a writer.
// Format: [4-byte big-endian length][JSON payload]
func WriteControlMessage(w io.Writer, msg *pb.ControlMessage) error {
	data, err := Marshal(msg)
	if err != nil {
		return err
	}

	// Single write so concurrent writers guarded by the caller never interleave a frame.
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data))) //nolint:gosec // length already bounds-checked
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "protocol: write frame")
	}
	return nil
}

// ReadControlMessage reads a length-prefixed JSON control message from a reader.
func ReadControlMessage(r io.Reader) (*pb.ControlMessage, error) {
	// Read length prefix
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, errors.Wrap(err, "protocol: read length")
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxControlMessage {
		return nil, errors.Wrapf(ErrMessageTooLarge, "%d bytes", length)
	}

	// Read payload
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrap(err, "protocol: read payload")
	}
	return Unmarshal(data)
}
