package threadpool

import (
	"fmt"
	"io"
)

const (
	StatusOK       = "HTTP/1.1 200 OK"
	StatusNotFound = "HTTP/1.1 404 NOT FOUND"
)

type Response struct {
	StatusLine string
	Body       []byte
}

// WriteTo writes the status line, a Content-Length header and the body.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w, "%s\r\nContent-Length: %d\r\n\r\n%s", r.StatusLine, len(r.Body), r.Body)
	return int64(n), err
}
