// watchpost-rotate re-seals every encrypted column in the watchpost database
// under a new master key. Stop the daemon first: the rewrite runs in one
// transaction and will refuse to proceed while another writer holds the
// database.
//
// Usage:
//
//	WATCHPOST_MASTER_KEY=<old> WATCHPOST_MASTER_KEY_NEW=<new> \
//	    watchpost-rotate -config config.yaml -new-key-env WATCHPOST_MASTER_KEY_NEW
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/crypto"
	"github.com/watchpost/watchpost/internal/store"
)

const rotateTimeout = 5 * time.Minute

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	newKeyEnv := flag.String("new-key-env", "", "environment variable holding the new base64 master key")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *newKeyEnv == "" {
		slog.Error("missing required flag -new-key-env")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	oldBox, err := crypto.FromEnv(cfg.Security.MasterKeyEnv)
	if err != nil {
		slog.Error("failed to load current master key", "err", err)
		os.Exit(1)
	}
	newBox, err := crypto.FromEnv(*newKeyEnv)
	if err != nil {
		slog.Error("failed to load new master key", "err", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Storage.Path, oldBox, 0)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.Storage.Path, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), rotateTimeout)
	defer cancel()

	n, err := st.ReencryptAll(ctx, newBox)
	if err != nil {
		if strings.Contains(err.Error(), "database is locked") {
			slog.Error("database is locked — stop the daemon before rotating", "err", err)
		} else {
			slog.Error("rotation failed, no rows were changed", "err", err)
		}
		os.Exit(1)
	}

	slog.Info("rotation complete", "rows", n,
		"note", "point "+cfg.Security.MasterKeyEnv+" at the new key before restarting the daemon")
}
