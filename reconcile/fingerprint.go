/*
fingerprint.go - Error-message digests for change detection

PURPOSE:
  Detect whether a transaction's error text changed since the last run
  without storing the full text. The digest is compared for equality
  against the fingerprint in the ledger and nothing else; it is not a
  security boundary and never leaves this system.

ALGORITHM:
  BLAKE3-256, hex encoded. Any stable hash with negligible accidental
  collisions over error-message text would do; the value is not part of
  any external compatibility contract.
*/
package reconcile

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// FingerprintOf returns the digest of an error message.
func FingerprintOf(message string) Fingerprint {
	sum := blake3.Sum256([]byte(message))
	return Fingerprint(hex.EncodeToString(sum[:]))
}
