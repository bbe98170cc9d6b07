// Summarizes the trade logs a server wrote: per-kind counts, rejection
// codes, and total traded value. Reads every trades-*.jsonl.zst under the
// given directory.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"

	"lootledger/internal/persistence/tradelog"
)

func main() {
	var (
		dir  = flag.String("dir", "./data/trades", "trade log directory")
		kind = flag.String("kind", "", "only count this intent kind")
		user = flag.String("user", "", "only count intents requested by this user")
		dump = flag.Bool("dump", false, "print every matching entry")
	)
	flag.Parse()

	files, err := filepath.Glob(filepath.Join(*dir, "trades-*.jsonl.zst"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "glob:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no trade logs under", *dir)
		os.Exit(1)
	}
	sort.Strings(files)

	byKind := map[string]int{}
	byCode := map[string]int{}
	total := decimal.Zero
	var entries, rejected int

	for _, path := range files {
		if err := scanFile(path, func(e tradelog.Entry) {
			if *kind != "" && e.Kind != *kind {
				return
			}
			if *user != "" && e.RequestedBy != *user {
				return
			}
			entries++
			byKind[e.Kind]++
			if !e.OK {
				rejected++
				code := e.Code
				if code == "" {
					code = "unspecified"
				}
				byCode[code]++
			}
			if e.Cost != "" {
				if c, err := decimal.NewFromString(e.Cost); err == nil {
					total = total.Add(c)
				}
			}
			if *dump {
				fmt.Printf("%s %-5s by=%s item=%s qty=%d ok=%v %s\n",
					e.Time.Format("2006-01-02 15:04:05"), e.Kind, e.RequestedBy, e.ItemRef, e.Quantity, e.OK, e.Detail)
			}
		}); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
	}

	fmt.Printf("files=%d entries=%d rejected=%d traded_value=%s\n", len(files), entries, rejected, total)
	for _, k := range sortedKeys(byKind) {
		fmt.Printf("  kind %-5s %d\n", k, byKind[k])
	}
	for _, c := range sortedKeys(byCode) {
		fmt.Printf("  reject %s %d\n", c, byCode[c])
	}
}

func scanFile(path string, fn func(tradelog.Entry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e tradelog.Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return err
		}
		fn(e)
	}
	return sc.Err()
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
