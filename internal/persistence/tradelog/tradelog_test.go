package tradelog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestWriterRoundtrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	entries := []Entry{
		{Time: time.Now().UTC(), Kind: "buy", RequestedBy: "u1", ItemRef: "it1", Quantity: 2, Cost: "30", OK: true},
		{Time: time.Now().UTC(), Kind: "loot", RequestedBy: "u2", ItemRef: "gp", Quantity: 5, OK: false, Code: "E_NOT_FOUND"},
	}
	for _, e := range entries {
		if err := w.Write(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "trades-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("files = %v (%v)", files, err)
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var got []Entry
	sc := bufio.NewScanner(dec.IOReadCloser())
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got[0].Kind != "buy" || got[1].Code != "E_NOT_FOUND" {
		t.Fatalf("got %+v", got)
	}
}
