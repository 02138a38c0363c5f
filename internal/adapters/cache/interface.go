package cache

type hitResult[T any] struct {
	data    T
	valid   bool
	claimed bool
}

// Cache is a claimable key/value store.
// A caller that claims a missing key is responsible for setting or deleting it,
// everyone else waits for the claim to resolve.
type Cache[T any] interface {
	getOrClaim(key string) hitResult[T]
	set(key string, data T)
	delete(key string)
	wait()
}
