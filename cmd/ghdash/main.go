// Command ghdash はGitHubダッシュボード向けのAPIサーバー。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/ghdash/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ghdash:", err)
		os.Exit(1)
	}
}
