package threadpool

import (
	"bufio"
	"errors"
	"io"

	"github.com/jirevwe/threadpool/packer"
)

// maxHeaderLines bounds how many lines ReadRequest accepts before the blank line.
const maxHeaderLines = 100

var ErrRequestTooLarge = errors.New("request has too many header lines")

// Request is one connection's request header, read up to the first blank line.
type Request struct {
	id         string
	remoteAddr string
	lines      []string
}

func (r *Request) Id() string         { return r.id }
func (r *Request) RemoteAddr() string { return r.remoteAddr }
func (r *Request) Lines() []string    { return r.lines }

// Line returns the request line, e.g. "GET / HTTP/1.1", or "" for an empty request.
func (r *Request) Line() string {
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[0]
}

// Empty reports whether the client sent nothing before the blank line.
func (r *Request) Empty() bool { return len(r.lines) == 0 }

type requestPayload struct {
	Id         string   `json:"id"`
	RemoteAddr string   `json:"remote_addr"`
	Lines      []string `json:"lines"`
}

// Payload is the msgpack encoding of the request, as stored in the journal.
func (r *Request) Payload() ([]byte, error) {
	return packer.EncodeMessage(&requestPayload{
		Id:         r.id,
		RemoteAddr: r.remoteAddr,
		Lines:      r.lines,
	})
}

func NewRequest(id, remoteAddr string, lines []string) *Request {
	return &Request{
		id:         id,
		remoteAddr: remoteAddr,
		lines:      lines,
	}
}

// ReadRequest reads lines from r until an empty line or EOF. A connection
// closed mid-line still yields the lines read so far.
func ReadRequest(r io.Reader, id, remoteAddr string) (*Request, error) {
	scanner := bufio.NewScanner(r)

	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}

		if len(lines) == maxHeaderLines {
			return nil, ErrRequestTooLarge
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return NewRequest(id, remoteAddr, lines), nil
}

// DecodeRequest rebuilds a request from its journal payload.
func DecodeRequest(payload []byte) (*Request, error) {
	var p requestPayload
	if err := packer.DecodeMessage(payload, &p); err != nil {
		return nil, err
	}

	return &Request{id: p.Id, remoteAddr: p.RemoteAddr, lines: p.Lines}, nil
}
