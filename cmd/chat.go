package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"floatai/internal/conversation"
	"floatai/internal/model"
	"floatai/internal/render"
	"floatai/internal/service"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	chatPromptID string
	chatChatID   string
	chatMarkdown bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [text]",
	Short: "Send one turn and stream the answer to the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatPromptID, "prompt", "p", "", "prompt template id")
	chatCmd.Flags().StringVar(&chatChatID, "continue", "", "continue a saved chat by id")
	chatCmd.Flags().BoolVarP(&chatMarkdown, "markdown", "m", false, "render the sealed answer as markdown")
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	svc := service.NewChatService(a.store, a.transport, a.cfg)
	view := conversation.NewView("")
	defer view.Close()
	if chatChatID != "" {
		if err := svc.OpenChat(view, chatChatID); err != nil {
			return err
		}
	}

	term, err := render.NewTerminal(os.Stdout, chatMarkdown, 80)
	if err != nil {
		return err
	}
	snapshots, unsubscribe := view.Subscribe()
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	followCtx, stopFollow := context.WithCancel(gctx)

	g.Go(func() error {
		err := term.Follow(followCtx, snapshots)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		defer stopFollow()
		in := model.TurnInput{Text: strings.Join(args, " "), PromptID: chatPromptID}
		if _, err := svc.Send(gctx, view, in); err != nil {
			return err
		}
		// 最后一个快照可能还没送到 Follow
		return term.Render(view.Transcript())
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if id := view.ChatID(); id != "" {
		cmd.PrintErrf("chat saved as %s\n", id)
	}
	return nil
}
