package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/neuralux/convoengine/internal/bus"
	"github.com/neuralux/convoengine/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check bus connectivity, storage, and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("convod doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND — defaults apply)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Bus:")
	fmt.Printf("    %-12s %s\n", "URL:", cfg.Bus.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	adapter := bus.NewNATSAdapter(bus.Config{
		URL:            cfg.Bus.URL,
		ConnectTimeout: 3 * time.Second,
	}, nil)
	if err := adapter.Connect(ctx); err != nil {
		fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", err)
	} else {
		fmt.Printf("    %-12s OK\n", "Status:")
		_ = adapter.Disconnect()
	}

	fmt.Println()
	fmt.Println("  Sessions:")
	backend := cfg.Sessions.Backend
	if backend == "" {
		backend = "file"
	}
	fmt.Printf("    %-12s %s\n", "Backend:", backend)
	switch backend {
	case "file", "sqlite":
		dir := cfg.DataDir()
		fmt.Printf("    %-12s %s", "Data dir:", dir)
		if err := checkWritable(dir); err != nil {
			fmt.Printf(" (NOT WRITABLE: %s)\n", err)
		} else {
			fmt.Println(" (OK)")
		}
	case "postgres":
		if cfg.Sessions.PostgresDSN == "" {
			fmt.Printf("    %-12s NLX_POSTGRES_DSN not set\n", "DSN:")
		} else {
			fmt.Printf("    %-12s set\n", "DSN:")
		}
	}

	fmt.Println()
	fmt.Printf("  Settings: %s", cfg.SettingsPath)
	if err := checkWritable(filepath.Dir(cfg.SettingsPath)); err != nil {
		fmt.Printf(" (NOT WRITABLE: %s)\n", err)
	} else {
		fmt.Println(" (OK)")
	}
}

// checkWritable proves write access by creating and removing a probe
// file.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
