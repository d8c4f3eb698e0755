package parser

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// EncodePayload encodes packets to w as one wire payload, in order. Binary
// framing prefixes each packet with raw length bytes; text framing uses a
// decimal length prefix and base64 for binary packet data.
func EncodePayload(w io.Writer, packets []Packet, binaryFraming bool) error {
	for i := range packets {
		var err error
		if binaryFraming {
			err = encodeBinaryFrame(w, packets[i])
		} else {
			err = encodeTextFrame(w, packets[i])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func encodeTextFrame(w io.Writer, p Packet) error {
	length := len(p.Data) + 1
	if p.Message == MessageBinary {
		length = base64.StdEncoding.EncodedLen(len(p.Data)) + 2
	}
	if _, err := fmt.Fprintf(w, "%d:", length); err != nil {
		return err
	}
	if p.Message == MessageBinary {
		return p.encodeB64Frame(w)
	}
	return p.EncodeFrame(w)
}

func encodeBinaryFrame(w io.Writer, p Packet) error {
	prefix := byte(0)
	if p.Message == MessageBinary {
		prefix = 1
	}
	digits := strconv.Itoa(len(p.Data) + 1)
	header := make([]byte, 0, len(digits)+2)
	header = append(header, prefix)
	for i := 0; i < len(digits); i++ {
		header = append(header, digits[i]-'0')
	}
	header = append(header, 0xff)
	if _, err := w.Write(header); err != nil {
		return err
	}
	return p.EncodeFrame(w)
}

// DecodePayload decodes the payload read from r, calling onPacket once per
// packet in wire order. Decoding halts without error when onPacket returns
// false; the remainder of the payload is discarded.
func DecodePayload(r io.Reader, onPacket func(Packet) bool) error {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	for {
		p, err := nextPacket(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !onPacket(p) {
			return nil
		}
	}
}

func nextPacket(br *bufio.Reader) (Packet, error) {
	first, err := br.Peek(1)
	if err != nil {
		return Packet{}, err
	}
	isBinary := first[0] < '0'
	delim := byte(':')
	if isBinary {
		// string/binary prefix byte, the type byte carries it again
		br.ReadByte()
		delim = 0xff
	}
	line, err := br.ReadBytes(delim)
	if err != nil {
		return Packet{}, errors.New("truncated length header")
	}
	l := len(line)
	if l < 2 {
		return Packet{}, errors.New("empty length header")
	}
	digits := line[:l-1]
	if isBinary {
		for i := range digits {
			digits[i] += '0'
		}
	}
	packetLen, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return Packet{}, errors.Wrapf(err, "invalid length header %q", digits)
	}
	lr := newLimitReader(br, packetLen)
	p, err := DecodeFrame(lr)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Packet{}, err
	}
	// drain anything the frame left unread so the next length header lines up
	if err := lr.Close(); err != nil {
		return Packet{}, err
	}
	return p, nil
}
