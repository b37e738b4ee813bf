package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMergeKeepsSiblings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "companys", "a", Doc{
		"status":  "enable",
		"profile": Doc{"name": "Acme", "email": "a@example.com"},
	}, SetOptions{}))

	require.NoError(t, s.Set(ctx, "companys", "a", Nest("profile.name", "Acme Inc"), SetOptions{Merge: true}))

	d, err := s.Get(ctx, "companys", "a")
	require.NoError(t, err)
	name, _ := Lookup(d, "profile.name")
	email, _ := Lookup(d, "profile.email")
	require.Equal(t, "Acme Inc", name)
	require.Equal(t, "a@example.com", email)
	require.Equal(t, "enable", d["status"])
}

func TestMemoryStoreReplaceWithoutMerge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "c", "x", Doc{"a": 1, "b": 2}, SetOptions{}))
	require.NoError(t, s.Set(ctx, "c", "x", Doc{"a": 3}, SetOptions{}))
	d, err := s.Get(ctx, "c", "x")
	require.NoError(t, err)
	require.Equal(t, Doc{"a": 3}, d)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "c", "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "c", "x", Doc{"p": Doc{"n": "a"}}, SetOptions{}))
	d, _ := s.Get(ctx, "c", "x")
	d["p"].(Doc)["n"] = "mutated"
	again, _ := s.Get(ctx, "c", "x")
	n, _ := Lookup(again, "p.n")
	require.Equal(t, "a", n)
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for id, doc := range map[string]Doc{
		"1": {"kind": "like", "at": int64(10), "tags": []string{"go"}},
		"2": {"kind": "like", "at": int64(30), "tags": []string{"rust"}},
		"3": {"kind": "entry", "at": int64(20)},
	} {
		require.NoError(t, s.Set(ctx, "e", id, doc, SetOptions{}))
	}

	got, err := s.Query(ctx, "e", Query{
		Where:   []Where{{Field: "kind", Op: OpEq, Value: "like"}},
		OrderBy: "at",
		Desc:    true,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.EqualValues(t, 30, got[0]["at"])

	got, err = s.Query(ctx, "e", Query{Where: []Where{{Field: "at", Op: OpGte, Value: 20}}})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = s.Query(ctx, "e", Query{Where: []Where{{Field: "tags", Op: OpArrayContains, Value: "go"}}})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = s.Query(ctx, "e", Query{Where: []Where{{Field: "kind", Op: OpIn, Value: []string{"entry", "output"}}}})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = s.Query(ctx, "e", Query{OrderBy: "at", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.EqualValues(t, 10, got[0]["at"])
}

func TestMemoryStoreFailWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")
	s.FailWrites("c", boom)
	require.ErrorIs(t, s.Set(ctx, "c", "x", Doc{}, SetOptions{}), boom)
	require.ErrorIs(t, s.Delete(ctx, "c", "x"), boom)
	s.FailWrites("c", nil)
	require.NoError(t, s.Set(ctx, "c", "x", Doc{}, SetOptions{}))
}

func TestEncodeDecode(t *testing.T) {
	type profile struct {
		Name string `bson:"name"`
	}
	type rec struct {
		UID     string   `bson:"uid"`
		Tags    []string `bson:"tags"`
		Profile profile  `bson:"profile"`
		At      int64    `bson:"at"`
	}
	doc, err := Encode(rec{UID: "u", Tags: []string{"a", "b"}, Profile: profile{Name: "n"}, At: 5})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, Strings(doc, "tags"))
	name, ok := Lookup(doc, "profile.name")
	require.True(t, ok)
	require.Equal(t, "n", name)

	var out rec
	require.NoError(t, Decode(doc, &out))
	require.Equal(t, "u", out.UID)
	require.Equal(t, int64(5), out.At)
}

func TestNest(t *testing.T) {
	require.Equal(t, Doc{"a": Doc{"b": Doc{"c": 1}}}, Nest("a.b.c", 1))
	require.Equal(t, Doc{"a": 1}, Nest("a", 1))
}
