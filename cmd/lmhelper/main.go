// Command lmhelper sends prompts to an OpenAI-compatible chat API and pulls
// tagged data out of the responses.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ibreez3/lm-helper/config"
	"github.com/ibreez3/lm-helper/extract"
	"github.com/ibreez3/lm-helper/openai"
	"github.com/ibreez3/lm-helper/service"
)

type app struct {
	configPath string
	debug      bool
	maxRetries int
	logger     *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "lmhelper",
		Short:         "Prompt a hosted language model and extract tagged output",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if a.debug {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "config/config.yaml", "optional YAML config file")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().IntVar(&a.maxRetries, "max-retries", 0, "attempts per request (0 uses the configured value)")

	cmd.AddCommand(a.askCmd(), a.extractCmd(), a.serveCmd(), versionCmd())
	return cmd
}

func (a *app) handle(cmd *cobra.Command, progress *service.Progress) (*openai.Handle, error) {
	h, err := openai.NewHandle(a.configPath,
		openai.WithLogger(a.logger),
		openai.WithRetryPolicy(openai.RetryPolicy{MaxRetries: a.maxRetries, Notify: progress.Mark}),
	)
	if err != nil {
		return nil, err
	}
	if err := config.EnsureDataDir(h.Config()); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return h, nil
}

func (a *app) askCmd() *cobra.Command {
	var system, tag string
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a prompt (argument or stdin) and print the response",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if prompt == "" {
				return fmt.Errorf("empty prompt")
			}
			progress := service.NewProgress(cmd.ErrOrStderr())
			h, err := a.handle(cmd, progress)
			if err != nil {
				return err
			}
			var msgs []openai.Message
			if system != "" {
				msgs = append(msgs, openai.Message{Role: openai.RoleSystem, Content: system})
			}
			msgs = append(msgs, openai.Prompt(prompt)...)

			out, err := h.Complete(cmd.Context(), msgs)
			if err != nil {
				progress.Error(err)
				return err
			}
			if tag != "" {
				if out, err = extract.Data(out, tag); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "system message sent before the prompt")
	cmd.Flags().StringVar(&tag, "tag", "", "print only the content of the last <tag> in the response")
	return cmd
}

func (a *app) extractCmd() *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the content of the last <tag> from a response read on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, nil)
			if err != nil {
				return err
			}
			out, err := extract.Data(in, tag)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "tag name, e.g. result for <result>...</result>")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the helper over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.handle(cmd, service.NewProgress(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			r := service.NewRouter(h, a.logger)
			addr := fmt.Sprintf(":%d", h.Config().Server.Port)
			a.logger.Info("listening", "addr", addr, "model", h.Config().LM.Model)
			return r.Run(addr)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bi := GetBuildInfo()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "lmhelper %s (commit %s, built %s, %s %s)\n",
				bi.Version, bi.GitCommit, bi.BuildDate, bi.GoVersion, bi.Platform)
			return err
		},
	}
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
