package notify

import (
	"context"
	"log/slog"
)

// Dispatcher は設定済みの全通知サービスへのファンアウトを行う。
// 通知はベストエフォートであり、送信失敗はログに記録されるだけで
// 呼び出し元へは伝播しない。
type Dispatcher struct {
	logger    *slog.Logger
	notifiers []Notifier
}

// NewDispatcher はDispatcher の新しいインスタンスを生成する。
// notifiersには設定済みのサービスのみを渡す。
func NewDispatcher(logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	active := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &Dispatcher{logger: logger, notifiers: active}
}

// Notifier は指定名のサービスを返す。未登録の場合はnil。
func (d *Dispatcher) Notifier(name string) Notifier {
	for _, n := range d.notifiers {
		if n.Name() == name {
			return n
		}
	}
	return nil
}

// SendBatch は新着リリースのバッチを全サービスへ送信する。
// 空のバッチは送信しない。ランごとに1回だけ呼び出される想定。
func (d *Dispatcher) SendBatch(ctx context.Context, items []BatchItem) {
	if len(items) == 0 {
		return
	}
	for _, n := range d.notifiers {
		if err := n.SendBatch(ctx, items); err != nil {
			d.logger.Error("通知の送信に失敗しました",
				slog.String("service", n.Name()),
				slog.Int("item_count", len(items)),
				slog.String("error", err.Error()),
			)
			continue
		}
		d.logger.Info("バッチ通知を送信しました",
			slog.String("service", n.Name()),
			slog.Int("item_count", len(items)),
		)
	}
}
