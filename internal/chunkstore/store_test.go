package chunkstore

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"ragqa/internal/cache"
	"ragqa/internal/chunker"
	"ragqa/internal/domain"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(chunker.NewSentenceChunker(10), t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBuild_IndicesPerDocument(t *testing.T) {
	s := newStore(t)
	docs := []domain.Document{
		{Filename: "a.txt", Path: "/c/a.txt", Content: "aaaa. bbbb. cccc."},
		{Filename: "b.txt", Path: "/c/b.txt", Content: "dddd."},
	}
	chunks := s.Build(docs)

	want := []struct {
		source string
		index  int
	}{{"a.txt", 0}, {"a.txt", 1}, {"b.txt", 0}}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, w := range want {
		if chunks[i].Source != w.source || chunks[i].ChunkIndex != w.index {
			t.Errorf("chunk %d = %s#%d, want %s#%d", i, chunks[i].Source, chunks[i].ChunkIndex, w.source, w.index)
		}
	}
}

func TestCache_RoundTrip(t *testing.T) {
	s := newStore(t)
	chunks := s.Build([]domain.Document{
		{Filename: "hlm.txt", Path: "/c/hlm.txt", Content: "红楼梦讲述贾宝玉与林黛玉的爱情故事。他们的命运充满悲剧色彩。"},
	})
	if err := s.SaveToCache("fp", chunks); err != nil {
		t.Fatalf("SaveToCache() error = %v", err)
	}
	got, err := s.LoadFromCache("fp")
	if err != nil {
		t.Fatalf("LoadFromCache() error = %v", err)
	}
	if !reflect.DeepEqual(got, chunks) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, chunks)
	}
}

func TestLoadFromCache_Stale(t *testing.T) {
	s := newStore(t)
	if err := s.SaveToCache("old", []domain.Chunk{{Source: "a.txt", Content: "x"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadFromCache("new"); !errors.Is(err, cache.ErrStale) {
		t.Errorf("LoadFromCache() error = %v, want ErrStale", err)
	}
}

func TestLoadFromCache_Missing(t *testing.T) {
	s := newStore(t)
	if _, err := s.LoadFromCache("fp"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("LoadFromCache() error = %v, want ErrNotFound", err)
	}
}
