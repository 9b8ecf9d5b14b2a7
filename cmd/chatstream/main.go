// Command chatstream streams a chat completion from an Ollama-compatible
// server and prints the reply as it arrives.
//
//	chatstream [--push] [--model name] [--system prompt] [--config file] prompt...
//	chatstream --version
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kbukum/chatstream/bootstrap"
	"github.com/kbukum/chatstream/chat"
	"github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/pipeline"
	"github.com/kbukum/chatstream/provider"
	"github.com/kbukum/chatstream/util"
	"github.com/kbukum/chatstream/version"
	"github.com/urfave/cli/v3"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitCanceled = 130
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and maps its outcome to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := newCommand(stdout, stderr).Run(ctx, append([]string{"chatstream"}, args...))
	var exit cli.ExitCoder
	switch {
	case err == nil:
		return exitOK
	case stderrors.As(err, &exit):
		if msg := exit.Error(); msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		return exit.ExitCode()
	default:
		fmt.Fprintf(stderr, "chatstream: %v\n", err)
		return exitFailure
	}
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "chatstream",
		Usage:     "Stream a chat completion and print the reply as it arrives",
		ArgsUsage: "prompt...",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "push",
				Usage: "consume the stream through a subscriber instead of pulling",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "model name; overrides chat.model",
			},
			&cli.StringFlag{
				Name:  "system",
				Usage: "system prompt",
			},
			&cli.FloatFlag{
				Name:  "temperature",
				Value: -1,
				Usage: "sampling temperature; negative keeps the server default",
			},
			&cli.IntFlag{
				Name:  "num-predict",
				Usage: "maximum tokens to generate; 0 keeps the server default",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "config file; defaults to the standard search paths",
			},
			&cli.BoolFlag{
				Name:  "version",
				Usage: "print the version and exit",
			},
		},
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			return cli.Exit("usage: "+err.Error(), exitUsage)
		},
		// Exit codes are mapped by run; the default handler would call os.Exit.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Action:         action,
	}
}

func action(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("version") {
		_, err := fmt.Fprintln(cmd.Root().Writer, "chatstream", version.Get())
		return err
	}
	prompt := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if prompt == "" {
		return cli.Exit("usage: chatstream [flags] prompt...", exitUsage)
	}

	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}

	app.OnStart(func(ctx context.Context) error {
		shutdown, err := observability.Setup(ctx, app.Cfg.Observability, app.Logger)
		if err != nil {
			return err
		}
		app.OnStop(bootstrap.Hook(shutdown))
		return nil
	})

	var client *chat.Client
	app.OnConfigure(func(_ context.Context, a *bootstrap.App[*AppConfig]) error {
		opts := []chat.Option{chat.WithLogger(a.Logger)}
		if a.Cfg.Observability.Metrics.Enabled {
			metrics, err := observability.NewStreamMetrics(observability.Meter("chatstream"))
			if err != nil {
				return err
			}
			opts = append(opts, chat.WithMetrics(metrics))
		}
		c, err := chat.New(a.Cfg.Chat, opts...)
		if err != nil {
			return err
		}
		a.OnStop(func(context.Context) error { return c.Close() })
		client = c
		return nil
	})

	req := requestFromFlags(cmd, prompt)
	out := cmd.Root().Writer
	err = app.RunTask(ctx, func(ctx context.Context) error {
		if cmd.Bool("push") {
			return streamPush(ctx, client, req, out)
		}
		return streamPull(ctx, client, app.Logger, req, out)
	})
	switch {
	case err == nil:
		return nil
	case errors.IsCanceled(err) || stderrors.Is(err, context.Canceled):
		return cli.Exit("", exitCanceled)
	default:
		app.Logger.Error("chat failed", failureFields(err))
		return cli.Exit("", exitFailure)
	}
}

func requestFromFlags(cmd *cli.Command, prompt string) chat.Request {
	req := chat.Request{Model: cmd.String("model")}
	temperature, numPredict := cmd.Float("temperature"), cmd.Int("num-predict")
	if temperature >= 0 || numPredict != 0 {
		req.Options = &chat.Options{NumPredict: numPredict}
		if temperature >= 0 {
			req.Options.Temperature = util.Ptr(temperature)
		}
	}
	if system := cmd.String("system"); system != "" {
		req.Messages = append(req.Messages, chat.Message{Role: chat.RoleSystem, Content: system})
	}
	req.Messages = append(req.Messages, chat.Message{Role: chat.RoleUser, Content: prompt})
	return req
}

// streamPull prints chunks by pulling them through the provider middleware
// and a pipeline.
func streamPull(ctx context.Context, client *chat.Client, log *logger.Logger, req chat.Request, w io.Writer) error {
	stream := provider.Chain(provider.WithLogging[chat.Request, chat.Chunk](log))(client)
	it, err := stream.Execute(ctx, req)
	if err != nil {
		return err
	}

	chunks := pipeline.Tap(pipeline.From(it), func(_ context.Context, c chat.Chunk) error {
		if c.Done {
			logUsage(log, c)
		}
		return nil
	})
	text := pipeline.Filter(
		pipeline.Map(chunks, func(_ context.Context, c chat.Chunk) (string, error) {
			return c.Message.Content, nil
		}),
		func(s string) bool { return s != "" },
	)
	if err := pipeline.ForEach(ctx, text, func(_ context.Context, s string) error {
		_, err := io.WriteString(w, s)
		return err
	}); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w)
	return err
}

// streamPush prints chunks from a subscriber callback and waits for the
// terminal event.
func streamPush(ctx context.Context, client *chat.Client, req chat.Request, w io.Writer) error {
	var writeErr error
	pub := client.Publish(ctx, req)
	sub := pub.Subscribe(chat.ObserverFuncs{
		Next: func(c chat.Chunk) {
			if writeErr == nil {
				_, writeErr = io.WriteString(w, c.Message.Content)
			}
		},
		Complete: func() {
			if writeErr == nil {
				_, writeErr = fmt.Fprintln(w)
			}
		},
	})
	<-sub.Done()
	if err := sub.Err(); err != nil {
		return err
	}
	return writeErr
}

// failureFields describes a failed session for the error log.
func failureFields(err error) map[string]interface{} {
	fields := logger.ErrorFields("stream", err)
	fields[logger.FieldErrorCode] = string(errors.CodeOf(err))
	fields["retryable"] = errors.IsRetryable(err)
	return fields
}

func logUsage(log *logger.Logger, c chat.Chunk) {
	u := c.Usage()
	log.Debug("chat usage", logger.MergeWithDuration(map[string]interface{}{
		logger.FieldModel:   c.Model,
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"done_reason":       c.DoneReason,
	}, c.TotalDuration))
}
