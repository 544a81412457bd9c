// Package cache stores decoded speech clips so that sentences synthesized
// once are not requested again. A memory LRU sits in front of an optional
// zstd-compressed disk store.
package cache
