// Package tokenstore provides qbo.TokenStore implementations for the class
// storage strategy: an in-process map, Redis, a bbolt file, a NATS JetStream
// key-value bucket, and a YAML file. NewFromConfig builds one from a Config,
// and Chain layers several stores as read-through tiers.
//
// Every store keys tokens by realm ID, returns (nil, nil) for a realm with
// no token, and is safe for concurrent use.
package tokenstore
