package memdump

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegionsParsesSelfMaps(t *testing.T) {
	regions, err := Regions(os.Getpid())
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("Regions returned no mappings for the running process")
	}
	for _, r := range regions {
		if r.End <= r.Start {
			t.Errorf("region %+v has End <= Start", r)
		}
		if r.Perms == "" {
			t.Errorf("region %+v has empty perms", r)
		}
	}
}

func TestDumpReadDumpRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memdump-0")
	// Snapshot the map list before Dump: Dump's own region-sized buffer
	// allocations grow this process's heap mappings afterwards.
	regions, err := Regions(os.Getpid())
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	if err := Dump(os.Getpid(), path); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	dumped, err := ReadDump(path)
	if err != nil {
		t.Fatalf("ReadDump: %v", err)
	}
	if len(dumped) == 0 {
		t.Fatal("ReadDump returned no regions")
	}

	if len(dumped) != len(regions) {
		t.Fatalf("ReadDump returned %d regions, Regions() found %d", len(dumped), len(regions))
	}
	for i, d := range dumped {
		if d.Start != regions[i].Start || d.End != regions[i].End {
			t.Errorf("region %d: got [%#x,%#x), want [%#x,%#x)", i, d.Start, d.End, regions[i].Start, regions[i].End)
		}
	}
}
