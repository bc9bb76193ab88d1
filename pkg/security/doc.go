/*
Package security provides the cryptographic primitives the wire protocol
and certificate authority build on.

# AEAD

Sealer wraps AES-256-GCM-SIV (RFC 8452) via github.com/secure-io/siv-go.
Sealing draws a fresh 96-bit nonce per call and prepends it to the
ciphertext:

	Plaintext → AES-256-GCM-SIV → nonce || ciphertext || tag

GCM-SIV is misuse-resistant: unlike plain AES-GCM, accidental nonce reuse
degrades authenticity rather than leaking the plaintext XOR. Nonce reuse
with the same key remains forbidden by contract regardless.

# Post-quantum primitives

GeneratePQKeyPair / GeneratePQSignKeyPair / SignPQ / VerifyPQ wrap
CIRCL's Kyber768 KEM and Dilithium signature scheme behind a narrow
byte-slice interface. These are treated as an external collaborator per
the system's scope: this package does not implement NIST PQC algorithms,
it adapts a vetted implementation to the shapes pkg/ca needs (keypair
generation, detached signing, verification).
*/
package security
