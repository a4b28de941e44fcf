package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"answerhound/internal/browser"
	"answerhound/internal/chat"
	"answerhound/internal/engine"
	"answerhound/internal/run"
)

var (
	questionSetPath string
	runID           string
)

// runCmd executes a full question set against the configured conversation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a question set and collect answer observations",
	Long: `Opens the configured conversation, then for every ordinance and
question in the set: fills the question, confirms the submission through
the submit control's busy/ready transitions, observes completion, extracts
the answer block, and writes answer.md plus raw captures.

Per-question failures are recorded and the run continues; only an unusable
browser session aborts the run. The manifest is written once at the end.

Example:
  answerhound run --set questions/golden_a.yaml`,
	RunE: executeRun,
}

func init() {
	runCmd.Flags().StringVarP(&questionSetPath, "set", "s", "", "path to the question set YAML (required)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "run id (default: generated UUID)")
	_ = runCmd.MarkFlagRequired("set")
}

func executeRun(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	set, err := run.LoadQuestionSet(questionSetPath)
	if err != nil {
		return err
	}

	id := runID
	if id == "" {
		id = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := browser.NewSession(cfg.Browser, logger)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := session.Shutdown(); err != nil {
			logger.Warn("browser shutdown failed", zap.Error(err))
		}
	}()

	page, err := session.OpenPage(ctx, cfg.Target.LoginURL())
	if err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	timeout := cfg.Target.Timeout()
	login := chat.NewLoginPage(page, timeout, logger)
	if err := login.Login(ctx, cfg.Target.Username, cfg.Target.Password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	selectPage := chat.NewSelectPage(page, timeout, logger)
	convID, err := selectPage.OpenConversation(ctx, cfg.Target.ChatName)
	if err != nil {
		return fmt.Errorf("open conversation %q: %w", cfg.Target.ChatName, err)
	}

	chatPage := chat.NewChatPage(page, session, convID, timeout, logger)
	prober := engine.NewProbe(chatPage.Page(), logger)

	tv := cfg.EngineTiming()
	timing := engine.Timing{
		Tick:            tv.Tick,
		AwaitBusyBound:  tv.AwaitBusy,
		AwaitReadyBound: tv.AwaitReady,
		SoftTimeout:     tv.Soft,
		Watchdog:        tv.Watchdog,
	}
	if err := timing.Validate(); err != nil {
		return err
	}

	runRoot := filepath.Join(cfg.Output.Root, "runs", id)
	acquirer := run.NewScopedAcquirer(chatPage, prober, timing, runRoot, logger)
	runner := run.NewRunner(acquirer, session, cfg.Output.Root, logger)

	started := time.Now()
	summary, err := runner.Run(ctx, id, set.Ordinances, set.Questions)
	if err != nil {
		return err
	}

	fmt.Printf("run %s finished in %s\n", id, time.Since(started).Round(time.Second))
	fmt.Printf("  questions: %d\n", len(summary.Results))
	for _, status := range []run.ResultStatus{run.StatusSuccess, run.StatusNoAnswer, run.StatusTimeout, run.StatusUIError, run.StatusExecError} {
		n := 0
		for _, r := range summary.Results {
			if r.Status == status {
				n++
			}
		}
		if n > 0 {
			fmt.Printf("  %s: %d\n", status, n)
		}
	}
	if summary.Aborted {
		fmt.Printf("  aborted: %s\n", summary.FatalError)
		os.Exit(2)
	}
	return nil
}
