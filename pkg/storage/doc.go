// Package storage provides the infrastructure clients backing the portal:
// the PostgreSQL connection manager, the Redis cache client, and the S3
// object client used by export sinks.
//
// # Layout
//
// The package deliberately holds no domain logic. Domain stores (members,
// products, parameters) live in their own packages and receive *sql.DB
// handles from the ConnectionManager here; the Redis and S3 clients are
// passed to the caches and sinks that need them.
//
// # Configuration
//
// All clients are configured from the flat Config struct. DefaultConfig
// returns values suitable for the docker-compose development environment
// (local PostgreSQL, Redis and MinIO).
package storage
