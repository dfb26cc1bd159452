package util

import "testing"

func TestNextPow2(t *testing.T) {
	t.Parallel()

	cases := map[int]int{-3: 1, 0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 64: 64, 65: 128}
	for in, want := range cases {
		if got := NextPow2(in); got != want {
			t.Fatalf("NextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestShardCount(t *testing.T) {
	t.Parallel()

	if got := ShardCount(5); got != 8 {
		t.Fatalf("ShardCount(5) = %d, want 8", got)
	}
	for _, huge := range []int{maxShards, maxShards + 1, 1 << 20, int(^uint(0) >> 1)} {
		if got := ShardCount(huge); got != maxShards {
			t.Fatalf("ShardCount(%d) = %d, want %d", huge, got, maxShards)
		}
	}
	auto := ShardCount(0)
	if auto < 1 || auto > maxShards || auto&(auto-1) != 0 {
		t.Fatalf("auto shard count %d must be a power of two in [1..%d]", auto, maxShards)
	}
}

// Part boundaries must matter for composite keys.
func TestHashKey_PartBoundaries(t *testing.T) {
	t.Parallel()

	if HashKey("ab", "c") == HashKey("a", "bc") {
		t.Fatal("shifted part boundary must change the hash")
	}
	if HashKey("tok", "torrents") != HashKey("tok", "torrents") {
		t.Fatal("hash must be deterministic")
	}
}

func TestShardIndex_InRange(t *testing.T) {
	t.Parallel()

	for _, h := range []uint64{0, 1, 7, 1<<63 + 5} {
		if idx := ShardIndex(h, 8); idx < 0 || idx >= 8 {
			t.Fatalf("index %d out of range for hash %d", idx, h)
		}
	}
	if ShardIndex(12345, 1) != 0 {
		t.Fatal("single shard must always map to 0")
	}
}
