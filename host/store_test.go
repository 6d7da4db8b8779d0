package host

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.PutMessage(0, "raw text", "<p>rendered</p>", false); err != nil {
		t.Fatalf("PutMessage: %v", err)
	}

	raw, err := s.RawText(0)
	if err != nil || raw != "raw text" {
		t.Errorf("RawText = %q, %v", raw, err)
	}
	rendered, err := s.RenderedHTML(0)
	if err != nil || rendered != "<p>rendered</p>" {
		t.Errorf("RenderedHTML = %q, %v", rendered, err)
	}

	raw, err = s.RawText(99)
	if err != nil || raw != "" {
		t.Errorf("absent message RawText = %q, %v", raw, err)
	}
}

func TestStoreMessageIDsOrdered(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []int{5, 1, 3} {
		if err := s.PutMessage(id, "x", "y", false); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := s.MessageIDs()
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 3, 5}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestStoreChangedSince(t *testing.T) {
	s := openTestStore(t)

	if err := s.PutMessage(0, "a", "", false); err != nil {
		t.Fatal(err)
	}
	ids, rev, err := s.ChangedSince(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("first poll ids = %v", ids)
	}

	// nothing new
	ids, rev2, err := s.ChangedSince(rev)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 || rev2 != rev {
		t.Fatalf("idle poll ids = %v rev %d->%d", ids, rev, rev2)
	}

	// only the rewritten message shows up
	if err := s.PutMessage(1, "b", "", false); err != nil {
		t.Fatal(err)
	}
	ids, _, err = s.ChangedSince(rev)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("incremental poll ids = %v", ids)
	}
}

func TestStoreStreamingFlag(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutMessage(0, "a", "", true); err != nil {
		t.Fatal(err)
	}
	streaming, err := s.Streaming()
	if err != nil || !streaming {
		t.Fatalf("Streaming = %v, %v, want true", streaming, err)
	}
	if err := s.SetStreaming(0, false); err != nil {
		t.Fatal(err)
	}
	streaming, err = s.Streaming()
	if err != nil || streaming {
		t.Fatalf("Streaming after stop = %v, %v, want false", streaming, err)
	}
}

func TestStorePersistsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.db")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutMessage(7, "kept", "<p>kept</p>", false); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	raw, err := s.RawText(7)
	if err != nil || raw != "kept" {
		t.Errorf("reopened RawText = %q, %v", raw, err)
	}

	// revision counter survives reopen so pollers never see stale "changes"
	if err := s.PutMessage(8, "new", "", false); err != nil {
		t.Fatal(err)
	}
	ids, _, err := s.ChangedSince(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 8 {
		t.Errorf("post-reopen ChangedSince = %v, want [8]", ids)
	}
}
