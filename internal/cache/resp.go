package cache

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// replyKind enumerates the subset of RESP types the provider understands.
type replyKind byte

const (
	kindSimple  replyKind = '+'
	kindError   replyKind = '-'
	kindInteger replyKind = ':'
	kindBulk    replyKind = '$'
	kindNil     replyKind = '_'
)

type reply struct {
	kind replyKind
	data []byte
}

func (r reply) isOK() bool {
	return r.kind == kindSimple && string(r.data) == "OK"
}

// serverError is an error reply sent by Valkey itself; it is never retried.
type serverError string

func (e serverError) Error() string { return "valkey: " + string(e) }

// writeCommand encodes args as a RESP array of bulk strings.
func writeCommand(w *bufio.Writer, args ...[]byte) error {
	w.WriteByte('*')
	w.WriteString(strconv.Itoa(len(args)))
	w.WriteString("\r\n")
	for _, a := range args {
		w.WriteByte('$')
		w.WriteString(strconv.Itoa(len(a)))
		w.WriteString("\r\n")
		w.Write(a)
		w.WriteString("\r\n")
	}
	return w.Flush()
}

func readReply(r *bufio.Reader) (reply, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return reply{}, err
	}
	line, err := readLine(r)
	if err != nil {
		return reply{}, err
	}

	switch replyKind(prefix) {
	case kindSimple, kindInteger:
		return reply{kind: replyKind(prefix), data: line}, nil
	case kindError:
		return reply{}, serverError(line)
	case kindBulk:
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return reply{}, fmt.Errorf("bad bulk length %q: %w", line, err)
		}
		if size < 0 {
			return reply{kind: kindNil}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return reply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return reply{}, fmt.Errorf("invalid bulk termination")
		}
		return reply{kind: kindBulk, data: buf[:size]}, nil
	default:
		return reply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("invalid line termination")
	}
	return append([]byte(nil), line[:len(line)-2]...), nil
}
