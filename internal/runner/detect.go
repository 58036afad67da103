package runner

import "github.com/nashra-hq/nashra-dispatch/internal/domain"

// IsNew reports whether the fetched item differs from the last published one.
// Detection is identity based: any fingerprint change counts as new content,
// including edits to an already published entry. An empty last fingerprint
// means the source was never published, so the first item always qualifies.
func IsNew(item *domain.Item, last string) bool {
	if item == nil {
		return false
	}
	if last == "" {
		return true
	}
	return item.Fingerprint != last
}
