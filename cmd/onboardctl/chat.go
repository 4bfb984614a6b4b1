package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/onboard-chat/internal/conversation"
	"github.com/ashureev/onboard-chat/internal/domain"
)

var resumeID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start or resume an onboarding conversation in the terminal",
	Long: `Reads one message per line from stdin and prints the assistant's replies.
Type /quit or send EOF to leave; the conversation can be resumed later with --session.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&resumeID, "session", "", "resume an existing session id")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, _, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	return chatLoop(ctx, svc.Orchestrator, resumeID, cmd.InOrStdin(), cmd.OutOrStdout())
}

// chatter is the orchestrator surface the chat loop needs.
type chatter interface {
	Start(ctx context.Context) (*conversation.Reply, error)
	Send(ctx context.Context, id, text string) (*conversation.Reply, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
}

func chatLoop(ctx context.Context, o chatter, id string, in io.Reader, out io.Writer) error {
	if id == "" {
		reply, err := o.Start(ctx)
		if err != nil {
			return err
		}
		id = reply.SessionID
		fmt.Fprintf(out, "session %s\n", id)
		printReply(out, reply)
	} else {
		sess, err := o.Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "resuming session %s at %s\n", id, sess.State)
		if sess.Complete() {
			fmt.Fprintln(out, "this conversation is already complete")
		}
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}
		reply, err := o.Send(ctx, id, line)
		if err != nil {
			return err
		}
		printReply(out, reply)
		if reply.Complete {
			fmt.Fprintln(out, "(onboarding complete)")
		}
	}
}

func printReply(out io.Writer, reply *conversation.Reply) {
	fmt.Fprintf(out, "assistant [%s]: %s\n", reply.State, reply.Message)
	if reply.Warning != "" {
		fmt.Fprintf(out, "  note: %s\n", reply.Warning)
	}
}
