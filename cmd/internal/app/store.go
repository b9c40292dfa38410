package app

import (
	"strings"

	"warden/cmd/internal/kv"
)

// MemoryStoreAddr as WARDEN_REDIS_ADDR selects the in-process store. State is
// not shared between processes, so an edge in this mode never sees revocations
// written by a separate authority.
const MemoryStoreAddr = "memory"

// newSharedStore opens the revocation and refresh-session store and returns the
// readiness check that pings it.
func newSharedStore(cfg Config, log Logger, binary string) (kv.Store, readyCheck, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.RedisAddr), MemoryStoreAddr) {
		log.Warn("store.memory.enabled", "binary", binary, "shared", false)
		mem := kv.NewMemory()
		return mem, readyCheck{name: "memory", check: mem.Ping}, nil
	}
	rdb, err := kv.NewRedis(cfg.Redis())
	if err != nil {
		return nil, readyCheck{}, err
	}
	return rdb, readyCheck{name: "redis", check: rdb.Ping}, nil
}
