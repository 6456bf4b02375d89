// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Command interview-cli is a terminal client for the persona research API. It
// analyzes transcripts, suggests follow-up questions and generates persona
// media, and can wait for a video job by polling its status.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/jaycherian/gcp-go-persona-research/internal/poller"
	"github.com/jaycherian/gcp-go-persona-research/internal/telemetry"
	"github.com/spf13/cobra"
)

// EnvServer overrides the default --server value.
const EnvServer = "INTERVIEW_SERVER"

var (
	serverURL string
	timeout   time.Duration
	verbose   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	defaultServer := os.Getenv(EnvServer)
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	rootCmd := &cobra.Command{
		Use:   "interview-cli",
		Short: "Client for the persona research API",
		Long: `interview-cli sends interview transcripts for analysis, asks for the
next interviewer question and generates persona images and videos.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			cfg := cloud.Telemetry{LogFormat: telemetry.LogFormatText, LogLevel: level}
			slog.SetDefault(slog.New(telemetry.NewLogHandler(cmd.ErrOrStderr(), cfg)))
		},
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "Base URL of the API server")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Minute, "Timeout for a single request")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(
		newAnalyzeCommand(),
		newSuggestCommand(),
		newImageCommand(),
		newVideoCommand(),
		newStatusCommand(),
		newHealthCommand(),
	)
	return rootCmd
}

func client() *Client {
	return NewClient(serverURL, nil)
}

// requestContext bounds one request by --timeout.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func newAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze an interview transcript",
		Long:  "Sends a JSON body with conversation, persona and scenario. Use - to read it from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body []byte
			var err error
			if args[0] == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read transcript: %w", err)
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client().Analyze(ctx, body)
			return report(cmd, out, err)
		},
	}
	return cmd
}

func newSuggestCommand() *cobra.Command {
	var req model.SuggestionRequest
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest the next interviewer question",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client().Suggest(ctx, req)
			return report(cmd, out, err)
		},
	}
	cmd.Flags().StringVar(&req.LastInterviewerMsg, "question", "", "The last interviewer message")
	cmd.Flags().StringVar(&req.LastPersonaResponse, "answer", "", "The last persona response")
	cmd.Flags().StringVar(&req.PersonaName, "persona", "", "The persona name")
	_ = cmd.MarkFlagRequired("question")
	_ = cmd.MarkFlagRequired("answer")
	return cmd
}

func newImageCommand() *cobra.Command {
	var prompt, aspect string
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Generate a persona image",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client().GenerateImage(ctx, model.ImageGenerationRequest{Prompt: prompt, AspectRatio: model.AspectRatio(aspect)})
			return report(cmd, out, err)
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Image description")
	cmd.Flags().StringVar(&aspect, "aspect", "", "Aspect ratio: 1:1, 16:9 or 9:16")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newVideoCommand() *cobra.Command {
	var prompt, aspect string
	var wait bool
	var opts poller.Options
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Start a persona video and optionally wait for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client()
			ctx, cancel := requestContext(cmd)
			started, err := c.StartVideo(ctx, model.VideoGenerationRequest{Prompt: prompt, AspectRatio: model.AspectRatio(aspect)})
			cancel()
			if err != nil || !wait {
				return report(cmd, started, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "started %s\n", started.OperationName)
			return waitForVideo(cmd, c, started.OperationName, opts)
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Video description")
	cmd.Flags().StringVar(&aspect, "aspect", "", "Aspect ratio: 16:9 or 9:16")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the video is completed or failed")
	cmd.Flags().DurationVar(&opts.Interval, "interval", poller.DefaultInterval, "Delay between status polls")
	cmd.Flags().DurationVar(&opts.MaxWait, "max-wait", poller.DefaultMaxWait, "Give up waiting after this long")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newStatusCommand() *cobra.Command {
	var wait bool
	var opts poller.Options
	cmd := &cobra.Command{
		Use:   "status <operationName>",
		Short: "Show the status of a video job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client()
			if wait {
				return waitForVideo(cmd, c, args[0], opts)
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := c.VideoStatus(ctx, args[0])
			return report(cmd, out, err)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the video is completed or failed")
	cmd.Flags().DurationVar(&opts.Interval, "interval", poller.DefaultInterval, "Delay between status polls")
	cmd.Flags().DurationVar(&opts.MaxWait, "max-wait", poller.DefaultMaxWait, "Give up waiting after this long")
	return cmd
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the server dependency checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client().Health(ctx)
			return report(cmd, out, err)
		},
	}
}

// waitForVideo polls operationName. Each poll gets its own --timeout; the
// whole wait is bounded by --max-wait. A failed job is reported as an error.
func waitForVideo(cmd *cobra.Command, c *Client, operationName string, opts poller.Options) error {
	opts.OnPoll = func(attempt int, status *model.VideoStatusResponse) {
		fmt.Fprintf(cmd.ErrOrStderr(), "poll %d: %s\n", attempt, status.Status)
	}
	fetch := func(ctx context.Context) (*model.VideoStatusResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return c.VideoStatus(ctx, operationName)
	}
	status, err := poller.Poll(cmd.Context(), fetch, opts)
	if errors.Is(err, poller.ErrMaxWait) {
		fmt.Fprintf(cmd.ErrOrStderr(), "still generating, resume with: interview-cli status --wait %s\n", operationName)
	}
	if err != nil {
		return report(cmd, status, err)
	}
	if status.Status == model.VideoFailed {
		_ = printJSON(cmd.OutOrStdout(), status)
		return fmt.Errorf("video operation %s failed", operationName)
	}
	return printJSON(cmd.OutOrStdout(), status)
}

// report prints out on success, or the error envelope fields on failure.
func report(cmd *cobra.Command, out any, err error) error {
	if err == nil {
		return printJSON(cmd.OutOrStdout(), out)
	}
	if ae, ok := apperr.As(err); ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s (%d): %s\n", ae.Code, ae.HTTPStatus, ae.Message)
		for k, v := range ae.Context {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", k, v)
		}
	} else {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
