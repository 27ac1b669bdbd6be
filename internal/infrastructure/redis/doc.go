// Package redis provides Redis connectivity for Gatehouse token stores.
//
// This package manages:
//   - Client construction with connection timeouts
//   - Connectivity verification at startup
//   - Health checks for the operational endpoints
//
// Redis is optional. When redis.enabled is false in config.yaml, the
// session revocation and password reset stores fall back to SQLite.
// When enabled, token entries are written with a TTL and expire
// without any prune loop.
//
// Usage:
//
//	client, err := redis.New(cfg.Redis)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
package redis
