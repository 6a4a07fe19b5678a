package shm

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatorThenJoiner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chan")

	creator, err := Open(path, 4096, true)
	if err != nil {
		t.Fatalf("creator Open: %v", err)
	}
	defer creator.Close()
	if creator.Role != RoleCreator {
		t.Fatalf("first Open should be creator")
	}
	if len(creator.Bytes) != 4096 {
		t.Fatalf("mapping size = %d, want 4096", len(creator.Bytes))
	}

	creator.Bytes[0] = 0xAB

	joiner, err := Open(path, 4096, true)
	if err != nil {
		t.Fatalf("joiner Open: %v", err)
	}
	defer joiner.Close()
	if joiner.Role != RoleJoiner {
		t.Fatalf("second Open should be joiner")
	}
	if joiner.Bytes[0] != 0xAB {
		t.Fatalf("joiner does not see creator's write: got %#x", joiner.Bytes[0])
	}
}

func TestCloseRemovesFileOnlyForCreator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chan")

	creator, err := Open(path, 4096, true)
	if err != nil {
		t.Fatalf("creator Open: %v", err)
	}
	joiner, err := Open(path, 4096, true)
	if err != nil {
		t.Fatalf("joiner Open: %v", err)
	}

	if err := joiner.Close(); err != nil {
		t.Fatalf("joiner Close: %v", err)
	}
	reopened, err := Open(path, 4096, true)
	if err != nil {
		t.Fatalf("file should still exist after joiner closes: %v", err)
	}
	defer reopened.Close()

	if err := creator.Close(); err != nil {
		t.Fatalf("creator Close: %v", err)
	}
}
