package flashcards

// FilterWithFallback returns the items matching predicate. When none match it returns the items
// matching fallback instead; a nil fallback matches everything.
func FilterWithFallback[T any](items []T, predicate, fallback func(T) bool) []T {
	matched := filter(items, predicate)
	if len(matched) > 0 {
		return matched
	}
	if fallback == nil {
		return append([]T(nil), items...)
	}
	return filter(items, fallback)
}

func filter[T any](items []T, keep func(T) bool) []T {
	var out []T
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
