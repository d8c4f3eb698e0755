package parser

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Protocol is the revision of the wire protocol this codec speaks. The
// session layer reports it to clients during the handshake.
const Protocol = 3

// MessageType is the type of packet data, text or binary.
type MessageType byte

const (
	MessageText   MessageType = '0'
	MessageBinary MessageType = 0
)

func (t MessageType) byte() byte {
	return byte(t)
}

func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	}
	return fmt.Sprintf("unknow(0x%x)", byte(t))
}

// PacketType is the type of packet
type PacketType byte

const (
	PacketOpen PacketType = iota
	PacketClose
	PacketPing
	PacketPong
	PacketMessage
	PacketUpgrade
	PacketNoop
	packetMax
)

func byteToPacketType(b byte) (PacketType, error) {
	ret := PacketType(b)
	if ret < packetMax {
		return ret, nil
	}
	return PacketNoop, errors.Errorf("invalid packet type byte 0x%x", b)
}

func (t PacketType) byte() byte {
	return byte(t)
}

// String return string
func (t PacketType) String() string {
	switch t {
	case PacketOpen:
		return "open"
	case PacketClose:
		return "close"
	case PacketPing:
		return "ping"
	case PacketPong:
		return "pong"
	case PacketMessage:
		return "message"
	case PacketUpgrade:
		return "upgrade"
	case PacketNoop:
		return "noop"
	}
	return fmt.Sprintf("unknow(0x%x)", byte(t))
}

// Packet is one protocol message unit. Compressible marks the packet as a
// candidate for response compression; it is an outbound attribute and is not
// carried on the wire.
type Packet struct {
	Type         PacketType
	Message      MessageType
	Data         []byte
	Compressible bool
}

// EncodeFrame writes the packet as a single frame: the type byte followed by
// the raw data. Text packets carry their type as an ASCII digit.
func (p Packet) EncodeFrame(w io.Writer) error {
	if _, err := w.Write([]byte{p.Type.byte() + p.Message.byte()}); err != nil {
		return err
	}
	if len(p.Data) == 0 {
		return nil
	}
	_, err := w.Write(p.Data)
	return err
}

// encodeB64Frame writes the packet as a text-safe frame, encoding binary data
// with base64 behind a 'b' marker.
func (p Packet) encodeB64Frame(w io.Writer) error {
	if _, err := w.Write([]byte{'b', p.Type.byte() + '0'}); err != nil {
		return err
	}
	enc := base64.NewEncoder(base64.StdEncoding, w)
	if _, err := enc.Write(p.Data); err != nil {
		return err
	}
	return enc.Close()
}

// DecodeFrame reads one frame from r until EOF and returns the packet in it.
func DecodeFrame(r io.Reader) (Packet, error) {
	b := []byte{0xff}
	if _, err := io.ReadFull(r, b); err != nil {
		return Packet{}, err
	}
	msg := MessageText
	if b[0] == 'b' {
		if _, err := io.ReadFull(r, b); err != nil {
			return Packet{}, errors.Wrap(err, "truncated base64 frame")
		}
		r = base64.NewDecoder(base64.StdEncoding, r)
		msg = MessageBinary
	}
	if b[0] >= '0' {
		b[0] = b[0] - '0'
	} else {
		msg = MessageBinary
	}
	typ, err := byteToPacketType(b[0])
	if err != nil {
		return Packet{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Packet{}, err
	}
	return Packet{
		Type:    typ,
		Message: msg,
		Data:    data,
	}, nil
}
