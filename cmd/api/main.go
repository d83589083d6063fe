package main

import (
	"fmt"
	"net/http"
	"os"

	"catalog-api/internal/app"
)

func main() {
	runtime, err := app.Build(app.Options{
		LoadDotEnv:    true,
		RunMigrations: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}
	defer runtime.Close()

	addr := ":" + runtime.Config.Port
	runtime.Logger.Info("server_start", "addr", addr)
	if err := http.ListenAndServe(addr, runtime.Handler); err != nil {
		runtime.Logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
}
