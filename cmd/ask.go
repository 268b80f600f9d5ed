package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drai-ai/drai/internal/capture"
	"github.com/drai-ai/drai/internal/chat"
	"github.com/drai-ai/drai/internal/convo"
	"github.com/drai-ai/drai/internal/log"
)

func newAskCmd() *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question non-interactively",
		Example: `  drai ask "I have a sore throat and mild fever"
  drai ask --image rash.png "what does this look like"
  drai ask "generate image of the inner ear"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" && imagePath == "" {
				return fmt.Errorf("a question or --image is required")
			}
			return runAsk(question, imagePath)
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "attach an image file to analyze")
	return cmd
}

// runAsk sends one turn through the active session and prints the reply.
func runAsk(question, imagePath string) error {
	cfg := initConfig()
	log.Init("warn")

	client, _, err := buildOracle(cfg)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer st.Close()

	m := convo.New(st, client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if imagePath != "" {
		att, err := capture.FromFile(imagePath)
		if err != nil {
			return err
		}
		stage := capture.NewStage()
		stage.Set(att)
		stage.SetCaption(question)
		req, _ := stage.Consume()
		if err := m.SubmitAnalysis(ctx, req); err != nil {
			return err
		}
	} else {
		if err := m.SubmitText(ctx, question); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.Events():
			switch ev.Kind {
			case convo.EventMessage:
				if ev.Message.Role == chat.RoleAssistant {
					fmt.Println(ev.Message.Text)
					if ev.Message.GeneratedImage != "" {
						fmt.Println(ev.Message.GeneratedImage)
					}
				}
			case convo.EventError:
				fmt.Fprintln(os.Stderr, ev.Message.Text)
				return ev.Err
			case convo.EventIdle:
				return nil
			}
		}
	}
}
