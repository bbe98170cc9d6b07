package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"lootledger/internal/docstore"
	"lootledger/internal/ledger"
	"lootledger/internal/persistence/tradelog"
	"lootledger/internal/policy"
	"lootledger/internal/realm"
	"lootledger/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		denomsPath = flag.String("denominations", "", "path to denominations.yaml (default: <configs>/denominations.yaml)")
		policyPath = flag.String("policy", "", "path to policy.yaml (default: <configs>/policy.yaml)")
		disableDB  = flag.Bool("disable_db", false, "keep actor records in memory only (no sqlite)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	dp := strings.TrimSpace(*denomsPath)
	if dp == "" {
		dp = filepath.Join(*configDir, "denominations.yaml")
	}
	table, err := ledger.LoadTable(dp)
	if err != nil {
		logger.Fatalf("load denominations: %v", err)
	}

	pp := strings.TrimSpace(*policyPath)
	if pp == "" {
		pp = filepath.Join(*configDir, "policy.yaml")
	}
	pol, err := policy.Load(pp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("policy not found (%s); using defaults", pp)
			pol = policy.Defaults()
		} else {
			logger.Fatalf("load policy: %v", err)
		}
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	var store docstore.Store
	if *disableDB {
		store = docstore.NewMemStore()
	} else {
		sq, err := docstore.OpenSQLite(filepath.Join(*dataDir, "actors.db"))
		if err != nil {
			logger.Fatalf("open actor db: %v", err)
		}
		defer sq.Close()
		store = sq
	}

	trades := tradelog.NewWriter(filepath.Join(*dataDir, "trades"))
	defer trades.Close()

	hub := ws.NewHub(logger)
	proc := realm.NewProcessor(store, table, pol, hub, trades, logger)
	rlm := realm.New(proc, pol.InboxCapacity, logger)

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := rlm.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("realm stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	// Local-only inspection endpoint.
	mux.HandleFunc("/admin/v1/actors", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		actors, err := store.List(ctx2)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(actors)
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(rlm, hub, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
