// Package logger はJSON構造化ログの初期化を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup は指定レベル以上を出力するJSON構造化ログのslog.Loggerを生成して返す。
// writerがnilの場合はos.Stdoutに出力する。
func Setup(w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if level == nil {
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler.WithAttrs([]slog.Attr{slog.String("service", "ghdash")}))
}

// SetupDefault はJSON構造化ログをグローバルロガーとして設定し、そのロガーを返す。
// 設定の読み込み前にも呼ばれるため、後からSetLevelで変更できるslog.LevelVarを使う。
func SetupDefault(w io.Writer, level *slog.LevelVar) *slog.Logger {
	var leveler slog.Leveler = slog.LevelInfo
	if level != nil {
		leveler = level
	}
	l := Setup(w, leveler)
	slog.SetDefault(l)
	return l
}
