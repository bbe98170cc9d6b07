// Operator tooling for the actor store: seed records from a JSON file, list
// or dump what is there, and delete records. Runs against the same sqlite
// file the server uses; stop the server first, the store has one writer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"lootledger/internal/actor"
	"lootledger/internal/docstore"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "seed":
			seedCmd(os.Args[2:])
			return
		case "get":
			getCmd(os.Args[2:])
			return
		case "delete":
			deleteCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func openStore(dataDir string) *docstore.SQLiteStore {
	store, err := docstore.OpenSQLite(filepath.Join(dataDir, "actors.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open actor db:", err)
		os.Exit(1)
	}
	return store
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	store := openStore(*dataDir)
	defer store.Close()

	actors, err := store.List(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, a := range actors {
		fmt.Printf("%-24s %-20s sheet=%-8s stacks=%d\n", a.ID, a.Name, a.Config.SheetType, len(a.Stacks))
	}
}

func seedCmd(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	file := fs.String("file", "", "JSON file holding an array of actor records")
	_ = fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		os.Exit(2)
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	var actors []*actor.Actor
	if err := json.Unmarshal(raw, &actors); err != nil {
		fmt.Fprintln(os.Stderr, "parse:", err)
		os.Exit(1)
	}

	store := openStore(*dataDir)
	defer store.Close()

	for _, a := range actors {
		if a.ID == "" {
			fmt.Fprintln(os.Stderr, "skipping record without id")
			continue
		}
		if err := store.Put(context.Background(), a); err != nil {
			fmt.Fprintf(os.Stderr, "put %s: %v\n", a.ID, err)
			os.Exit(1)
		}
		fmt.Println("seeded", a.ID)
	}
}

func getCmd(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	id := fs.String("id", "", "actor id")
	_ = fs.Parse(args)

	if *id == "" {
		fmt.Fprintln(os.Stderr, "missing -id")
		os.Exit(2)
	}
	store := openStore(*dataDir)
	defer store.Close()

	a, err := store.Get(context.Background(), *id)
	if errors.Is(err, docstore.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "no such actor:", *id)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "get:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(a)
}

func deleteCmd(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	id := fs.String("id", "", "actor id")
	_ = fs.Parse(args)

	if *id == "" {
		fmt.Fprintln(os.Stderr, "missing -id")
		os.Exit(2)
	}
	store := openStore(*dataDir)
	defer store.Close()

	if err := store.Delete(context.Background(), *id); err != nil {
		fmt.Fprintln(os.Stderr, "delete:", err)
		os.Exit(1)
	}
	fmt.Println("deleted", *id)
}
