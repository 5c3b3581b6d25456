package mountdebug

import (
	"os"
	"path/filepath"
	"testing"

	"retrace/pkg/memdump"
)

func TestBuildTreeOneDirPerDump(t *testing.T) {
	root := t.TempDir()
	if err := memdump.Dump(os.Getpid(), filepath.Join(root, "memdump-0")); err != nil {
		t.Fatalf("memdump.Dump: %v", err)
	}
	if err := memdump.Dump(os.Getpid(), filepath.Join(root, "memdump-5")); err != nil {
		t.Fatalf("memdump.Dump: %v", err)
	}

	tree, err := buildTree(root)
	if err != nil {
		t.Fatalf("buildTree: %v", err)
	}
	if tree.children == nil {
		t.Fatal("root node has no children map (should be a directory)")
	}
	if len(tree.children) != 2 {
		t.Fatalf("root has %d children, want 2", len(tree.children))
	}

	for _, name := range []string{"memdump-0", "memdump-5"} {
		dumpDir, ok := tree.children[name]
		if !ok {
			t.Fatalf("missing child %q", name)
		}
		if dumpDir.children == nil {
			t.Fatalf("%q is not a directory node", name)
		}
		if len(dumpDir.children) == 0 {
			t.Errorf("%q has no region files", name)
		}
		for regionName, f := range dumpDir.children {
			if f.children != nil {
				t.Errorf("region %q under %q should be a file node", regionName, name)
			}
		}
	}
}

func TestBuildTreeIgnoresNonDumpFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "events"), []byte("not a dump"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tree, err := buildTree(root)
	if err != nil {
		t.Fatalf("buildTree: %v", err)
	}
	if len(tree.children) != 0 {
		t.Errorf("buildTree picked up non-dump file, children = %v", tree.children)
	}
}

func TestNodeReadClampsToDataLength(t *testing.T) {
	n := file([]byte("hello world"))
	res, errno := n.Read(nil, nil, make([]byte, 100), 6)
	if errno != 0 {
		t.Fatalf("Read errno = %v", errno)
	}
	buf := make([]byte, 100)
	read, _ := res.Bytes(buf)
	if string(read) != "world" {
		t.Errorf("Read at offset 6 = %q, want %q", read, "world")
	}
}

func TestNodeReadPastEndReturnsEmpty(t *testing.T) {
	n := file([]byte("hi"))
	res, errno := n.Read(nil, nil, make([]byte, 10), 100)
	if errno != 0 {
		t.Fatalf("Read errno = %v", errno)
	}
	buf := make([]byte, 10)
	read, _ := res.Bytes(buf)
	if len(read) != 0 {
		t.Errorf("Read past end = %q, want empty", read)
	}
}
