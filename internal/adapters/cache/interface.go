package cache

type hitResult[T any] struct {
	data    T
	valid   bool
	claimed bool
}

// Cache is a claim based cache. The first caller to see a key claims it and
// is responsible for setting or deleting it. Everyone else waits until the
// key becomes valid or disappears.
type Cache[T any] interface {
	getOrClaim(key string) hitResult[T]
	set(key string, data T)
	delete(key string)
	wait()
}
