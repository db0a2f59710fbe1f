// Package password hashes and verifies user passwords.
//
// New digests are Argon2id in PHC string form:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Legacy bcrypt digests still verify, but report NeedsRehash so callers can
// upgrade them after a successful login. The salt lives inside the digest.
package password
