package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jirevwe/threadpool/journal"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

var slogger = slog.New(slog.NewTextHandler(os.Stdout, nil))

func newTestSqlite(t *testing.T) *Sqlite {
	t.Helper()

	s, err := NewSqlite(filepath.Join(t.TempDir(), "journal.db"), slogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func newEntry(line string) *journal.Entry {
	return &journal.Entry{
		Id:          ulid.Make().String(),
		RemoteAddr:  "127.0.0.1:50000",
		RequestLine: line,
		Request:     []byte(line),
	}
}

func TestSqlite_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestSqlite(t)

	e := newEntry("GET / HTTP/1.1")
	require.NoError(t, s.Record(ctx, e))
	require.Equal(t, string(journal.StatusAccepted), e.Status)

	got, err := s.Get(ctx, e.Id)
	require.NoError(t, err)
	require.Equal(t, e.Id, got.Id)
	require.Equal(t, "GET / HTTP/1.1", got.RequestLine)
	require.Equal(t, []byte("GET / HTTP/1.1"), got.Request)
	require.Equal(t, string(journal.StatusAccepted), got.Status)
	require.False(t, got.CreatedTime().IsZero())
}

func TestSqlite_GetMissing(t *testing.T) {
	s := newTestSqlite(t)

	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, journal.ErrEntryNotFound)
}

func TestSqlite_RecordDuplicateId(t *testing.T) {
	ctx := context.Background()
	s := newTestSqlite(t)

	e := newEntry("GET / HTTP/1.1")
	require.NoError(t, s.Record(ctx, e))
	require.Error(t, s.Record(ctx, e))
}

func TestSqlite_Attach(t *testing.T) {
	ctx := context.Background()
	s := newTestSqlite(t)

	e := &journal.Entry{Id: ulid.Make().String(), RemoteAddr: "127.0.0.1:50000"}
	require.NoError(t, s.Record(ctx, e))

	require.NoError(t, s.Attach(ctx, e.Id, "GET / HTTP/1.1", []byte{0x01, 0x02}))

	got, err := s.Get(ctx, e.Id)
	require.NoError(t, err)
	require.Equal(t, "GET / HTTP/1.1", got.RequestLine)
	require.Equal(t, []byte{0x01, 0x02}, got.Request)

	require.ErrorIs(t, s.Attach(ctx, "missing", "", nil), journal.ErrEntryNotFound)
}

func TestSqlite_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestSqlite(t)

	e := newEntry("GET /sleep HTTP/1.1")
	require.NoError(t, s.Record(ctx, e))

	updated, err := s.UpdateStatus(ctx, e.Id, journal.StatusServing)
	require.NoError(t, err)
	require.Equal(t, string(journal.StatusServing), updated.Status)

	updated, err = s.UpdateStatus(ctx, e.Id, journal.StatusServed)
	require.NoError(t, err)
	require.Equal(t, string(journal.StatusServed), updated.Status)

	_, err = s.UpdateStatus(ctx, e.Id, journal.StatusServing)
	require.ErrorIs(t, err, journal.ErrInvalidTransition)

	got, err := s.Get(ctx, e.Id)
	require.NoError(t, err)
	require.Equal(t, string(journal.StatusServed), got.Status)
}

func TestSqlite_UpdateStatusMissing(t *testing.T) {
	s := newTestSqlite(t)

	_, err := s.UpdateStatus(context.Background(), "missing", journal.StatusServed)
	require.ErrorIs(t, err, journal.ErrEntryNotFound)
}

func TestSqlite_List(t *testing.T) {
	ctx := context.Background()
	s := newTestSqlite(t)

	var ids []string
	for i := 0; i < 4; i++ {
		e := newEntry(fmt.Sprintf("GET /%d HTTP/1.1", i))
		require.NoError(t, s.Record(ctx, e))
		ids = append(ids, e.Id)
	}

	_, err := s.UpdateStatus(ctx, ids[1], journal.StatusFailed)
	require.NoError(t, err)

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, e := range all {
		require.Equal(t, ids[i], e.Id)
	}

	failed, err := s.List(ctx, journal.StatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, ids[1], failed[0].Id)

	limited, err := s.List(ctx, journal.StatusAccepted, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestSqlite_RecordConcurrently(t *testing.T) {
	ctx := context.Background()
	s := newTestSqlite(t)

	wg := &sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.Record(ctx, newEntry("GET / HTTP/1.1")))
		}()
	}
	wg.Wait()

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 10)
}

func TestNewSqlite_UnopenablePath(t *testing.T) {
	// the directory does not exist, so the first statement fails
	s, err := NewSqlite(filepath.Join(t.TempDir(), "missing", "journal.db"), slogger)
	require.Error(t, err)
	require.Nil(t, s)
}
