// Command lavoor はLavoorのREST APIサーバーを起動する。
//
// 使い方:
//
//	lavoor [serve|migrate|rollback|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/lavoor/lavoor/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
