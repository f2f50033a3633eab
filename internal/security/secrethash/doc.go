// Package secrethash hashes refresh-token secrets for server-side storage.
//
// Secrets are hashed with Argon2id and stored as encoded strings in the form
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>.
// Verification is constant-time with respect to the secret content, so a
// compromised database never yields usable refresh secrets and the compare
// step leaks no timing signal.
package secrethash
