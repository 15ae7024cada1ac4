// Command portalctl はポータルAPIのクライアントCLI。
// セッションをファイルに保存し、期限切れのアクセストークンは自動でリフレッシュする。
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "portalctl: %s\n", err)
		os.Exit(1)
	}
}
