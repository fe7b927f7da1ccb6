// Package password implements the memory-hard password hashing layer for
// twogate using argon2id. Account databases are a prime offline-cracking
// target, so this layer is the primary defense below the second factor: a
// deliberately slow, memory-hard derivation rather than a fast digest.
//
// Hashes use the PHC string format, embedding version, cost parameters, and
// salt, so stored hashes remain verifiable after cost parameters change.
package password
