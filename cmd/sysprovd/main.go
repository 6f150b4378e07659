package main

import (
	"context"
	"log"
	"os"

	"github.com/tunonalves/sysprov/internal/hostfs"
	"github.com/tunonalves/sysprov/internal/logger"
	"github.com/tunonalves/sysprov/internal/server"
)

func main() {
	addr := getenvDefault("SYSPROV_LISTEN", ":14680")
	dataDir := getenvDefault("SYSPROV_DATA_DIR", "/var/lib/sysprov")
	hostfs.SetRoot(os.Getenv("SYSPROV_HOST_ROOT"))

	if err := logger.Init(dataDir); err != nil {
		log.Printf("file logging disabled: %v", err)
	}

	if os.Geteuid() != 0 {
		logger.Warn("running as uid %d; account mutation and chown will fail", os.Geteuid())
	}

	srv := server.New(server.Config{
		ListenAddr: addr,
		DataDir:    dataDir,
	})
	srv.StartSampler(context.Background())

	logger.Info("sysprovd listening on %s (host root %s)", addr, hostfs.Root())
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
