package threadpool

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var slogger = slog.New(slog.NewTextHandler(os.Stdout, nil))

func TestReadRequest(t *testing.T) {
	in := "GET / HTTP/1.1\r\nHost: localhost\r\nUser-Agent: test\r\n\r\nignored body"

	req, err := ReadRequest(strings.NewReader(in), "id-1", "127.0.0.1:5000")
	require.NoError(t, err)

	require.Equal(t, "id-1", req.Id())
	require.Equal(t, "127.0.0.1:5000", req.RemoteAddr())
	require.Equal(t, []string{"GET / HTTP/1.1", "Host: localhost", "User-Agent: test"}, req.Lines())
	require.Equal(t, RouteIndex, req.Line())
	require.False(t, req.Empty())
}

func TestReadRequest_Empty(t *testing.T) {
	for _, in := range []string{"", "\r\n", "\n\nGET / HTTP/1.1\n"} {
		req, err := ReadRequest(strings.NewReader(in), "id", "addr")
		require.NoError(t, err)
		require.True(t, req.Empty(), "input %q", in)
		require.Equal(t, "", req.Line())
	}
}

func TestReadRequest_EOFWithoutBlankLine(t *testing.T) {
	req, err := ReadRequest(strings.NewReader("GET /sleep HTTP/1.1"), "id", "addr")
	require.NoError(t, err)
	require.Equal(t, RouteSleep, req.Line())
}

func TestReadRequest_TooLarge(t *testing.T) {
	in := strings.Repeat("X-Header: 1\r\n", maxHeaderLines+1) + "\r\n"

	_, err := ReadRequest(strings.NewReader(in), "id", "addr")
	require.ErrorIs(t, err, ErrRequestTooLarge)
}

func TestRequest_Payload(t *testing.T) {
	req := NewRequest("01HQ", "10.0.0.1:1234", []string{"GET / HTTP/1.1", "Host: x"})

	payload, err := req.Payload()
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	decoded, err := DecodeRequest(payload)
	require.NoError(t, err)
	require.Equal(t, req, decoded)
}

func TestDecodeRequest_Garbage(t *testing.T) {
	_, err := DecodeRequest([]byte{0xc1})
	require.Error(t, err)
}
