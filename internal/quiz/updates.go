package quiz

import (
	"context"

	"github.com/example/passdrill/internal/persist"
)

// CheckForUpdates asks for a newer catalog at most once per calendar day. There is no remote
// catalog source, so it never reports an update and never touches the held questions.
func (b *Bank) CheckForUpdates(ctx context.Context) (bool, error) {
	today := b.now().Format("2006-01-02")

	var last string
	ok, err := persist.LoadJSON(ctx, b.storage, persist.LastUpdateCheckKey, &last)
	if err != nil {
		return false, err
	}
	if ok && last == today {
		return false, nil
	}

	b.log.Debug("checking for question updates", "version", b.Version())

	if err := persist.SaveJSON(ctx, b.storage, persist.LastUpdateCheckKey, today); err != nil {
		return false, err
	}
	return false, nil
}
