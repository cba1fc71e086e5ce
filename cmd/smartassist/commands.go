package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"smartassist/internal/config"
	"smartassist/internal/tasks"
	"smartassist/internal/ui"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newChatCmd() *cobra.Command {
	var raw, watch bool

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant",
		Long: `Send a message to the assistant, or start an interactive session when no
message is given. Messages starting with COMMAND: are decomposed into tasks
and executed. In a session, /models, /switch <backend>, /limits, /history
and /quit are available.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				reply, err := a.assistant.ProcessInput(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				printReply(out, a, reply, raw)
				return nil
			}

			if watch {
				go a.watchConfig(ctx)
			}
			return runSession(ctx, a, cmd.InOrStdin(), out, raw)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print replies without markdown rendering")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the config file when it changes")
	return cmd
}

func printReply(w io.Writer, a *app, reply string, raw bool) {
	if raw {
		fmt.Fprintln(w, reply)
		return
	}
	fmt.Fprint(w, a.render.Markdown(reply))
}

// lines yields trimmed non-empty lines from r.
func lines(r io.Reader) iter.Seq[string] {
	return func(yield func(string) bool) {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}

func runSession(ctx context.Context, a *app, in io.Reader, out io.Writer, raw bool) error {
	fmt.Fprintf(out, "smartassist %s using %s. Type /quit to exit.\n", version, a.gateway.CurrentBackend())

	for line := range lines(in) {
		if strings.HasPrefix(line, "/") {
			quit, err := sessionCommand(ctx, a, out, line)
			if err != nil {
				fmt.Fprint(out, a.render.Result(false, err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}

		reply, err := a.assistant.ProcessInput(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprint(out, a.render.Result(false, err.Error()))
			continue
		}
		printReply(out, a, reply, raw)
	}
	return nil
}

func sessionCommand(ctx context.Context, a *app, out io.Writer, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/models":
		fmt.Fprint(out, a.render.Backends(a.gateway.Backends()))
	case "/limits":
		fmt.Fprint(out, a.render.Limits(a.limitStats()))
	case "/history":
		fmt.Fprint(out, a.render.Tasks(append(a.router.HistoryRecords(), a.router.Active()...)))
	case "/cancel":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /cancel <task id>")
		}
		if !a.router.CancelTask(fields[1]) {
			return false, fmt.Errorf("task %s is not running", fields[1])
		}
	case "/switch":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /switch <backend>")
		}
		id, err := config.ParseBackendID(fields[1])
		if err != nil {
			return false, err
		}
		if err := a.gateway.SwitchModel(ctx, id); err != nil {
			return false, err
		}
		fmt.Fprint(out, a.render.Result(true, "switched to "+id.String()))
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <task>",
		Short: "Execute a task or COMMAND: compound command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			input := strings.Join(args, " ")
			ok := a.router.ExecuteTask(ctx, input)

			out := cmd.OutOrStdout()
			fmt.Fprint(out, a.render.Tasks(a.router.HistoryRecords()))
			if !ok {
				return fmt.Errorf("task failed: %s", input)
			}
			fmt.Fprint(out, a.render.Result(true, "task executed"))
			return nil
		},
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List configured backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Fprint(cmd.OutOrStdout(), a.render.Backends(a.gateway.Backends()))
			return nil
		},
	}
}

func newLimitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Show the per-model request limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Fprint(cmd.OutOrStdout(), a.render.Limits(a.limitStats()))
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show executed tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			path := a.historyPath()
			if asJSON {
				data, err := os.ReadFile(path)
				if os.IsNotExist(err) {
					data = []byte("[]")
				} else if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			records, err := tasks.LoadHistory(path)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), a.render.Tasks(records))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON history")
	return cmd
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a config file listing every supported backend with its default
base URL and model. API keys are left empty; set them in the file, in a
credentials file or through the provider's environment variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.GetConfigPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			cfg.Gateway.Backends = config.DefaultBackends()
			if backend != "" {
				id, err := config.ParseBackendID(backend)
				if err != nil {
					return err
				}
				cfg.Gateway.CurrentBackend = id
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), ui.NewRenderer(100).Result(true, "wrote "+path))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
