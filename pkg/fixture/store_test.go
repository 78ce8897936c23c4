package fixture

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestPathIsDeterministic(t *testing.T) {
	s := New("testdata/golden")

	first := s.Path("users_list")
	second := s.Path("users_list")
	if first != second {
		t.Fatalf("expected identical paths, got %q and %q", first, second)
	}
	if want := filepath.Join("testdata/golden", "users_list.json"); first != want {
		t.Fatalf("expected %q, got %q", want, first)
	}
	if s.Path("users_list") == s.Path("orders_list") {
		t.Fatalf("expected distinct identifiers to resolve to distinct paths")
	}
}

func TestPathExtensionOptions(t *testing.T) {
	cases := []struct {
		name string
		opt  Option
		want string
	}{
		{"default", nil, "id.json"},
		{"with dot", WithExtension(".xml"), "id.xml"},
		{"without dot", WithExtension("txt"), "id.txt"},
		{"empty", WithExtension(""), "id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var opts []Option
			if tc.opt != nil {
				opts = append(opts, tc.opt)
			}
			s := New("root", opts...)
			if got := s.Path("id"); got != filepath.Join("root", tc.want) {
				t.Fatalf("expected %q, got %q", filepath.Join("root", tc.want), got)
			}
		})
	}
}

func TestExists(t *testing.T) {
	s := New(t.TempDir())

	ok, err := s.Exists("missing")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatalf("expected missing fixture to not exist")
	}

	if err := s.Write("present", []byte("body")); err != nil {
		t.Fatalf("write: %v", err)
	}
	ok, err = s.Exists("present")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !ok {
		t.Fatalf("expected fixture to exist after write")
	}
}

func TestReadMissingReturnsNotFound(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Read("absent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	bodies := [][]byte{
		[]byte(`[{"id":1}]`),
		[]byte{},
		{0x00, 0xff, 0x10},
	}

	for _, body := range bodies {
		if err := s.Write("roundtrip", body); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := s.Read("roundtrip")
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(got, body) {
			t.Fatalf("expected %q, got %q", body, got)
		}
	}
}

func TestReadEmptyFixtureIsNotNotFound(t *testing.T) {
	s := New(t.TempDir())

	if err := s.Write("empty", nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := s.Read("empty")
	if err != nil {
		t.Fatalf("expected empty fixture to read cleanly, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty body, got %q", got)
	}
}

func TestWriteOverwritesCompletely(t *testing.T) {
	s := New(t.TempDir())

	if err := s.Write("users_list", []byte("old-and-longer-content")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Write("users_list", []byte("new")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.Read("users_list")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("expected full overwrite, got %q", got)
	}
}

func TestWriteCreatesParentDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "golden")
	s := New(root)

	if err := s.Write("deep", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "deep.json")); err != nil {
		t.Fatalf("expected fixture file under created directories: %v", err)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if err := s.Write("tidy", []byte("body")); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "tidy.json" {
		t.Fatalf("expected only the fixture file, got %v", entries)
	}
}

func TestConcurrentReadersNeverSeePartialWrites(t *testing.T) {
	s := New(t.TempDir())

	old := bytes.Repeat([]byte("a"), 64*1024)
	fresh := bytes.Repeat([]byte("b"), 64*1024)

	if err := s.Write("atomic", old); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			got, err := s.Read("atomic")
			if err != nil {
				t.Errorf("read during write: %v", err)
				return
			}
			if !bytes.Equal(got, old) && !bytes.Equal(got, fresh) {
				t.Errorf("observed partial fixture of %d bytes", len(got))
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		body := old
		if i%2 == 1 {
			body = fresh
		}
		if err := s.Write("atomic", body); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	close(done)
	wg.Wait()
}
