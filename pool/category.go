package pool

import "time"

// Category groups buffer sizes that share a free-list bucket family and an
// idle-eviction timeout. Larger categories tolerate longer idle times because
// reallocation is costlier.
type Category int

const (
	CategorySmall  Category = iota // 0 - 64KiB
	CategoryMedium                 // 64KiB - 10MiB
	CategoryXLarge                 // 10MiB - 100MiB
	CategoryBatch                  // >= 100MiB
)

const (
	smallMaxBytes  = 64 << 10
	mediumMaxBytes = 10 << 20
	xlargeMaxBytes = 100 << 20
)

// CategoryFor derives the category from a requested size
func CategoryFor(size int64) Category {
	switch {
	case size <= smallMaxBytes:
		return CategorySmall
	case size <= mediumMaxBytes:
		return CategoryMedium
	case size <= xlargeMaxBytes:
		return CategoryXLarge
	default:
		return CategoryBatch
	}
}

// String returns the category name
func (c Category) String() string {
	switch c {
	case CategorySmall:
		return "small"
	case CategoryMedium:
		return "medium"
	case CategoryXLarge:
		return "xlarge"
	case CategoryBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// IdleTimeout returns the idle-eviction timeout for this category, derived
// from the configured baseline. A zero baseline disables idle eviction.
func (c Category) IdleTimeout(base time.Duration) time.Duration {
	if base == 0 {
		return 0
	}
	switch c {
	case CategorySmall:
		return base
	case CategoryMedium:
		return 2 * base
	case CategoryXLarge:
		return 4 * base
	default:
		return 8 * base
	}
}
