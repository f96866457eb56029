package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-story-studio/pkg/domain"
	"github.com/shouni/go-story-studio/pkg/workflow"
)

// chatCmd は、ストーリーのアイデア出しを手伝うチャットを起動するのだ。
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "AIアシスタントと対話しながらアイデアを練るのだ。",
	Long: `標準入力から1行ずつメッセージを送り、返答をストリーミングで表示するのだ。
空行は無視し、"exit" か EOF で終了するのだよ。`,
	RunE: chatCommand,
}

func chatCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	appCtx, err := loadAppContext(ctx)
	if err != nil {
		return err
	}
	return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), appCtx.Manager)
}

// runChat は in から1行ずつ読み、返答の断片を out に書き出すのだ。
func runChat(ctx context.Context, in io.Reader, out io.Writer, mgr *workflow.Manager) error {
	session := mgr.Chat()
	for _, m := range session.Messages() {
		fmt.Fprintf(out, "%s> %s\n", m.Role, m.Text)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" {
			return nil
		}

		fmt.Fprintf(out, "%s> ", domain.RoleModel)
		err := mgr.SendChat(ctx, text, func(fragment, _ string) {
			fmt.Fprint(out, fragment)
		})
		if err != nil {
			msgs := session.Messages()
			fmt.Fprint(out, msgs[len(msgs)-1].Text)
		}
		fmt.Fprintln(out)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
