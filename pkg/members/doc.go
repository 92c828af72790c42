// Package members manages the club's member administration records.
//
// The package provides:
//   - Member records keyed by membership number (name, address, email,
//     region, membership kind, active flag)
//   - PostgresStore: CRUD plus filtered listing over database/sql
//   - CachedStore: a Redis cache-aside layer over any Store with
//     per-entry TTLs and write-path invalidation
//
// Listing composes with the access evaluator: callers pass the
// requesting user's accessible regions in Filter.Regions, and the
// wildcard region "all" lifts the restriction.
//
// Usage:
//
//	store, err := members.NewPostgresStore(db)
//	if err != nil {
//		log.Fatal(err)
//	}
//	cached := members.NewCachedStore(store, redisClient)
//
//	list, err := cached.List(ctx, members.Filter{
//		Regions: evaluator.AccessibleRegions(user),
//	})
//
// Related packages:
//   - pkg/authz: region scoping and permission decisions
//   - pkg/exports: CSV address lists built from this store
//   - pkg/storage: the Redis client backing CachedStore
package members
