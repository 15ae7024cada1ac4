package app

import (
	"fmt"
	"io"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモード。引数なしの場合のデフォルト。
	CommandServe Command = "serve"
	// CommandWorker は招待の期限切れジョブを定期実行するワーカーモード。
	CommandWorker Command = "worker"
	// CommandMigrate は未適用のマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はローカルの/healthを確認して終了する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示して終了する。
	CommandHelp Command = "help"
)

var commandSummaries = []struct {
	cmd     Command
	summary string
}{
	{CommandServe, "start the API server (default)"},
	{CommandWorker, "expire stale team invitations periodically"},
	{CommandMigrate, "apply database migrations"},
	{CommandHealthcheck, "check http://localhost:$SERVER_PORT/health"},
	{CommandHelp, "show this help"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。2番目以降の引数は無視する。
// 未知のサブコマンドはエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch args[0] {
	case "-h", "--help":
		return CommandHelp, nil
	}
	for _, c := range commandSummaries {
		if string(c.cmd) == args[0] {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", args[0])
}

// PrintUsage はサブコマンドの一覧をwに書き出す。
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: portal [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commandSummaries {
		fmt.Fprintf(w, "  %-12s %s\n", c.cmd, c.summary)
	}
}
