// Package sealedbox implements anonymous public-key encryption compatible
// with libsodium's crypto_box_seal, the format GitHub requires for
// Actions, Dependabot and Codespaces secrets.
//
// A sealed box is built from a fresh X25519 key pair per message:
//
//	ephemeral_pk || XSalsa20-Poly1305(msg, nonce, shared(ephemeral_sk, recipient_pk))
//
// where nonce = BLAKE2b-192(ephemeral_pk || recipient_pk). The sender
// forgets the ephemeral private key immediately, so only the holder of the
// recipient private key can open the box. This package deliberately offers
// no way to open one.
//
// Example:
//
//	recipient, err := sealedbox.ParsePublicKey(keyFromGitHub)
//	if err != nil {
//	    return err
//	}
//	encrypted, err := sealedbox.EncryptString([]byte("s3cr3t"), recipient)
package sealedbox
