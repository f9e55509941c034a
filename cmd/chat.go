package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/internal/handler"
)

func chatCmd() *cobra.Command {
	var sessionSuffix string
	var autoApprove bool
	var oneShot string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the engine from this terminal",
		Long: "Interactive conversational shell. Slash commands:\n" +
			"  /reset     archive and clear the session\n" +
			"  /history   show recent turns\n" +
			"  /context   show session variables\n" +
			"  /archives  list archived conversations\n" +
			"  /quit      exit",
		Run: func(cmd *cobra.Command, args []string) {
			runChat(sessionSuffix, autoApprove, oneShot)
		},
	}
	cmd.Flags().StringVar(&sessionSuffix, "session", "", "session suffix for concurrent terminals")
	cmd.Flags().BoolVar(&autoApprove, "yes", false, "auto-approve all actions")
	cmd.Flags().StringVarP(&oneShot, "execute", "e", "", "process one utterance and exit")
	return cmd
}

func runChat(sessionSuffix string, autoApprove bool, oneShot string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "convod: %v\n", err)
		os.Exit(1)
	}
	defer rt.close()

	sessionID := convo.DefaultSessionID(sessionSuffix)
	h, err := handler.New(ctx, rt.bus, rt.store, rt.plan, rt.orch, sessionID, sessionID, rt.log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "convod: %v\n", err)
		os.Exit(1)
	}

	if oneShot != "" {
		processAndRender(ctx, h, oneShot, autoApprove)
		return
	}

	fmt.Printf("convod chat — session %s (Ctrl-D to exit)\n", sessionID)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runSlashCommand(ctx, h, rt, line); quit {
				return
			}
			continue
		}
		processAndRender(ctx, h, line, autoApprove)
		if ctx.Err() != nil {
			return
		}
	}
}

func runSlashCommand(ctx context.Context, h *handler.Handler, rt *appRuntime, line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/reset":
		h.Reset(ctx)
		fmt.Println("session archived and reset")

	case "/history":
		limit := 20
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil {
				limit = n
			}
		}
		for _, entry := range h.History(limit) {
			ts := time.UnixMilli(entry.Timestamp).Format("15:04:05")
			fmt.Printf("[%s] %s: %s\n", ts, entry.Role, entry.Content)
		}

	case "/context":
		data, _ := json.MarshalIndent(h.ContextSummary(), "", "  ")
		fmt.Println(string(data))

	case "/archives":
		archives, err := rt.store.ListArchives(ctx, h.UserID, 0, 20)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		if len(archives) == 0 {
			fmt.Println("no archived conversations")
			break
		}
		for _, a := range archives {
			ts := time.UnixMilli(a.UpdatedAt).Format("2006-01-02 15:04")
			fmt.Printf("%d  %s  %s\n", a.ID, ts, a.Title)
		}

	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
	return false
}

func processAndRender(ctx context.Context, h *handler.Handler, text string, autoApprove bool) {
	resp := h.ProcessMessage(ctx, text, autoApprove)

	if resp.Type == handler.TypeNeedsApproval {
		fmt.Printf("%s\n", resp.Message)
		for i, a := range resp.Actions {
			fmt.Printf("  %d. [%s] %s\n", i+1, a.ActionType, a.Description)
		}
		fmt.Print("approve? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("cancelled")
			return
		}
		resp = h.ApproveAndExecute(ctx, resp.PendingActions, nil)
	}

	fmt.Println(resp.Message)
	for _, a := range resp.Actions {
		status := "ok"
		if !a.Success {
			status = "failed: " + a.Error
		}
		fmt.Printf("  [%s] %s — %s\n", a.ActionType, a.Description, status)
	}
}
