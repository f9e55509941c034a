package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/neuralux/convoengine/internal/convo"
)

func archivesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archives",
		Short: "Inspect archived conversations",
	}
	cmd.AddCommand(archivesListCmd(), archivesShowCmd())
	return cmd
}

func archivesListCmd() *cobra.Command {
	var start, count int
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived conversations, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			withRuntime(func(ctx context.Context, rt *appRuntime) error {
				if userID == "" {
					userID = convo.DefaultSessionID("")
				}
				archives, err := rt.store.ListArchives(ctx, userID, start, count)
				if err != nil {
					return err
				}
				if len(archives) == 0 {
					fmt.Println("no archived conversations")
					return nil
				}
				for _, a := range archives {
					ts := time.UnixMilli(a.UpdatedAt).Format("2006-01-02 15:04")
					fmt.Printf("%-16d %s  %s\n", a.ID, ts, a.Title)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "page offset")
	cmd.Flags().IntVar(&count, "count", 20, "page size")
	cmd.Flags().StringVar(&userID, "user", "", "user id (default: current user@host)")
	return cmd
}

func archivesShowCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one archived conversation as JSON",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			withRuntime(func(ctx context.Context, rt *appRuntime) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid archive id %q", args[0])
				}
				if userID == "" {
					userID = convo.DefaultSessionID("")
				}
				archive, err := rt.store.GetArchive(ctx, userID, id)
				if err != nil {
					return err
				}
				if archive == nil {
					return fmt.Errorf("archive %d not found", id)
				}
				data, _ := json.MarshalIndent(archive, "", "  ")
				fmt.Println(string(data))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (default: current user@host)")
	return cmd
}

// withRuntime wires the runtime for a one-shot subcommand and tears it
// down afterward.
func withRuntime(fn func(context.Context, *appRuntime) error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "convod: %v\n", err)
		os.Exit(1)
	}
	defer rt.close()

	if err := fn(ctx, rt); err != nil {
		fmt.Fprintf(os.Stderr, "convod: %v\n", err)
		os.Exit(1)
	}
}
