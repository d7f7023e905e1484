package kvengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *BoltEngine {
	t.Helper()
	e, err := OpenBoltEngine(Options{DataDir: t.TempDir()}, 1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestBoltEnginePutGet(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Write(Batch{PutOp([]byte("k1"), []byte("v1"))}))

	v, err := e.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	_, err = e.Get([]byte("missing"))
	require.Error(t, err)
}

func TestBoltEngineBatchAtomicity(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Write(Batch{
		PutOp([]byte("a"), []byte("1")),
		PutOp([]byte("b"), []byte("2")),
		RemoveOp([]byte("a")),
	}))
	_, err := e.Get([]byte("a"))
	require.Error(t, err)
	v, err := e.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}

func TestBoltEnginePrefixScan(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Write(Batch{
		PutOp([]byte("a/1"), []byte("1")),
		PutOp([]byte("a/2"), []byte("2")),
		PutOp([]byte("b/1"), []byte("3")),
	}))

	it, err := e.Prefix([]byte("a/"))
	require.NoError(t, err)
	defer it.Close()

	var got []string
	ctx := context.Background()
	for it.Next(ctx) {
		got = append(got, string(it.Item().Key))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"a/1", "a/2"}, got)
}

func TestBoltEngineRangeScan(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Write(Batch{
		PutOp([]byte("a"), []byte("1")),
		PutOp([]byte("b"), []byte("2")),
		PutOp([]byte("c"), []byte("3")),
		PutOp([]byte("d"), []byte("4")),
	}))

	it, err := e.Range([]byte("b"), []byte("d"))
	require.NoError(t, err)
	defer it.Close()

	var got []string
	ctx := context.Background()
	for it.Next(ctx) {
		got = append(got, string(it.Item().Key))
	}
	require.Equal(t, []string{"b", "c"}, got, "range is half-open [begin,end)")
}

func TestBoltEngineMultiGet(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Write(Batch{PutOp([]byte("k1"), []byte("v1"))}))

	out, err := e.MultiGet([][]byte{[]byte("k1"), []byte("missing")})
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), out[0])
	require.Nil(t, out[1])
}
