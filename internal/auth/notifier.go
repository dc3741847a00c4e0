package auth

import (
	"context"
	"log/slog"
)

// Notifier はパスワード再設定リンクを利用者に届ける。
type Notifier interface {
	SendRecoveryLink(ctx context.Context, email, link string) error
}

// LogNotifier は再設定リンクを構造化ログに出力するNotifier。
// メール送信基盤を持たない環境（開発・ステージング）で使用する。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。loggerがnilの場合はslog.Default()を使う。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendRecoveryLink は再設定リンクをログに出力する。
func (n *LogNotifier) SendRecoveryLink(ctx context.Context, email, link string) error {
	n.logger.InfoContext(ctx, "password recovery link issued",
		slog.String("email", email),
		slog.String("link", link),
	)
	return nil
}
