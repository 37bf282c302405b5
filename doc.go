// Package memocache memoizes methods against a pluggable store.
//
// A wrapped method computes its result once per owner instance and argument
// list, stores it for a fixed ttl and serves later calls from the store. The
// default key is
//
//	cache#{obj_<id>}#<method>#<arguments as a JSON array>
//
// where id is a per-instance identifier that is never reused. Stores range
// from the in-process memory store to redis, memcached, NATS JetStream,
// DynamoDB, SQL and the filesystem, all behind the same Store contract.
package memocache
