package seekindex_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/oggopus/pkg/audio/codec/ogg"
	"github.com/haivivi/oggopus/pkg/audio/codec/oggopus"
	"github.com/haivivi/oggopus/pkg/audio/codec/opus"
	"github.com/haivivi/oggopus/pkg/seekindex"
)

// stores returns one constructor per Store implementation.
func stores() map[string]func(t *testing.T) seekindex.Store {
	return map[string]func(t *testing.T) seekindex.Store{
		"memory": func(t *testing.T) seekindex.Store {
			return seekindex.NewMemory()
		},
		"badger": func(t *testing.T) seekindex.Store {
			t.Helper()
			s, err := seekindex.NewBadger(seekindex.BadgerOptions{InMemory: true})
			if err != nil {
				t.Fatalf("NewBadger: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func testRecord(source string, points int) *seekindex.Record {
	rec := &seekindex.Record{
		Source: source,
		Summary: seekindex.Summary{
			Channels: 2,
			PreSkip:  3840,
			Metadata: oggopus.Metadata{{Key: "TITLE", Value: source}},
		},
		Table: oggopus.SeekTable{SampleRate: 48000},
	}
	for i := range points {
		rec.Table.Points = append(rec.Table.Points, oggopus.SeekPoint{
			TimeUs:  int64(i) * 20000,
			Granule: int64(i) * 960,
			Offset:  int64(100 + i*50),
		})
	}
	return rec
}

func TestStorePutGet(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, seekindex.ErrNotFound) {
				t.Fatalf("Get missing = %v, want ErrNotFound", err)
			}
			if _, err := s.Lookup(ctx, "missing.opus"); !errors.Is(err, seekindex.ErrNotFound) {
				t.Fatalf("Lookup missing = %v, want ErrNotFound", err)
			}

			rec := testRecord("a.opus", 3)
			if err := s.Put(ctx, rec); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if rec.ID == "" || rec.CreatedAt.IsZero() {
				t.Fatalf("Put did not fill ID/CreatedAt: %+v", rec)
			}

			got, err := s.Get(ctx, rec.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Source != "a.opus" || got.Summary.Channels != 2 || got.Summary.PreSkip != 3840 {
				t.Errorf("Get = %+v", got)
			}
			if !slices.Equal(got.Table.Points, rec.Table.Points) {
				t.Errorf("Points = %v, want %v", got.Table.Points, rec.Table.Points)
			}
			if !slices.Equal(got.Summary.Metadata, rec.Summary.Metadata) {
				t.Errorf("Metadata = %v", got.Summary.Metadata)
			}
			if !got.CreatedAt.Equal(rec.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
			}

			bysrc, err := s.Lookup(ctx, "a.opus")
			if err != nil || bysrc.ID != rec.ID {
				t.Errorf("Lookup = %+v, %v", bysrc, err)
			}
		})
	}
}

func TestStoreReplaceSource(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			first := testRecord("a.opus", 1)
			if err := s.Put(ctx, first); err != nil {
				t.Fatal(err)
			}
			second := testRecord("a.opus", 2)
			if err := s.Put(ctx, second); err != nil {
				t.Fatal(err)
			}

			if _, err := s.Get(ctx, first.ID); !errors.Is(err, seekindex.ErrNotFound) {
				t.Errorf("old record still present: %v", err)
			}
			got, err := s.Lookup(ctx, "a.opus")
			if err != nil || got.ID != second.ID {
				t.Errorf("Lookup = %+v, %v", got, err)
			}

			// Moving a record to another source frees the old one.
			second.Source = "b.opus"
			if err := s.Put(ctx, second); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Lookup(ctx, "a.opus"); !errors.Is(err, seekindex.ErrNotFound) {
				t.Errorf("Lookup old source = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreLookupDuringReplace(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			if err := s.Put(ctx, testRecord("a.opus", 1)); err != nil {
				t.Fatal(err)
			}

			done := make(chan struct{})
			var wg sync.WaitGroup
			for range 4 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						select {
						case <-done:
							return
						default:
						}
						if _, err := s.Lookup(ctx, "a.opus"); err != nil {
							t.Errorf("Lookup during replace: %v", err)
							return
						}
					}
				}()
			}
			for range 200 {
				if err := s.Put(ctx, testRecord("a.opus", 2)); err != nil {
					t.Error(err)
					break
				}
			}
			close(done)
			wg.Wait()
		})
	}
}

func TestStoreDeleteList(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			var ids []string
			for _, src := range []string{"x.opus", "y.opus", "z.opus"} {
				rec := testRecord(src, 1)
				if err := s.Put(ctx, rec); err != nil {
					t.Fatal(err)
				}
				ids = append(ids, rec.ID)
			}
			slices.Sort(ids)

			var listed []string
			for rec, err := range s.List(ctx) {
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				listed = append(listed, rec.ID)
			}
			if !slices.Equal(listed, ids) {
				t.Errorf("List = %v, want %v", listed, ids)
			}

			if err := s.Delete(ctx, ids[0]); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, ids[0]); !errors.Is(err, seekindex.ErrNotFound) {
				t.Errorf("second Delete = %v, want ErrNotFound", err)
			}

			n := 0
			for _, err := range s.List(ctx) {
				if err != nil {
					t.Fatal(err)
				}
				n++
			}
			if n != 2 {
				t.Errorf("List after delete has %d records, want 2", n)
			}

			// Early break.
			for range s.List(ctx) {
				break
			}
		})
	}
}

func TestStorePutRequiresSource(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			if err := newStore(t).Put(context.Background(), &seekindex.Record{}); err == nil {
				t.Error("Put without source should fail")
			}
		})
	}
}

func TestBadgerOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := seekindex.NewBadger(seekindex.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	rec := testRecord("disk.opus", 2)
	if err := s.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = seekindex.NewBadger(seekindex.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Lookup(ctx, "disk.opus")
	if err != nil {
		t.Fatalf("Lookup after reopen: %v", err)
	}
	if got.ID != rec.ID || len(got.Table.Points) != 2 {
		t.Errorf("Lookup = %+v", got)
	}

	if _, err := seekindex.NewBadger(seekindex.BadgerOptions{}); err == nil {
		t.Error("NewBadger without Dir should fail")
	}
}

func TestBuild(t *testing.T) {
	var buf bytes.Buffer
	w, err := ogg.NewOpusWriter(&buf, ogg.OpusWriterOptions{Channels: 2, Comments: []string{"ARTIST=X"}})
	if err != nil {
		t.Fatal(err)
	}
	for i := range 50 {
		if err := w.Write(opus.Frame{0xFC, byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	rec, err := seekindex.Build(context.Background(), "mem://song", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rec.Source != "mem://song" || rec.ID == "" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Summary.Packets != 50 || rec.Summary.Channels != 2 || rec.Summary.Serial != w.SerialNo() {
		t.Errorf("Summary = %+v", rec.Summary)
	}
	if v, _ := rec.Summary.Metadata.Get("artist"); v != "X" {
		t.Errorf("Metadata = %v", rec.Summary.Metadata)
	}
	if len(rec.Table.Points) != 50 || rec.Table.Duration() != time.Second {
		t.Errorf("Table: %d points, duration %v", len(rec.Table.Points), rec.Table.Duration())
	}

	if _, err := seekindex.Build(context.Background(), "bad", bytes.NewReader([]byte("not an ogg stream, just some bytes"))); !errors.Is(err, ogg.ErrInvalidPage) {
		t.Errorf("Build on garbage = %v, want ErrInvalidPage", err)
	}
}
