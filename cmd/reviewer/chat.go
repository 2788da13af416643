package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/agent"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/tools"
)

func newChatCmd(opts *globalOptions) *cobra.Command {
	var (
		message    string
		allowIndex bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about the repository with a tool-calling agent",
		Long: `Chat with an agent that answers questions by querying the index.

Examples:
  reviewer chat                                   # Interactive REPL
  reviewer chat -m "How are requests retried?"    # One-shot message`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				model, err := a.chatModel()
				if err != nil {
					return err
				}

				table := a.table
				if !allowIndex {
					table = table.Subset(tools.QueryRepository, tools.IndexStatus)
				}

				errOut := cmd.ErrOrStderr()
				st := newStyles(errOut)
				bot := agent.New(model, table,
					agent.WithSystemPrompt(agent.SystemPrompt(a.repoPath)),
					agent.WithMaxSteps(opts.cfg.Agent.MaxSteps),
					agent.WithObserver(func(e agent.Event) {
						if e.State == agent.StateInvoking && e.Call != nil {
							fmt.Fprintln(errOut, st.tool.Render(fmt.Sprintf("  → %s %s", e.Call.Name, agent.FormatArguments(e.Call.Arguments))))
						}
					}),
				)

				if message != "" {
					answer, err := bot.Ask(ctx, message)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
					return err
				}
				return chatLoop(ctx, bot, cmd.InOrStdin(), cmd.OutOrStdout(), errOut)
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "one-shot message (omit for interactive mode)")
	cmd.Flags().BoolVar(&allowIndex, "allow-index", false, "let the agent rebuild the index")
	return cmd
}

func chatLoop(ctx context.Context, bot *agent.Agent, in io.Reader, out, errOut io.Writer) error {
	st := newStyles(out)
	fmt.Fprintln(out, st.muted.Render("Type a question, /reset to clear the conversation, exit to quit."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, st.title.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/reset":
			bot.Reset()
			fmt.Fprintln(out, st.muted.Render("conversation cleared"))
			continue
		}

		answer, err := bot.Ask(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(errOut, newStyles(errOut).err.Render("Error:"), err)
			continue
		}
		fmt.Fprintln(out, answer)
		fmt.Fprintln(out)
	}
}
