// Package secure keeps secret values out of ordinary Go memory.
//
// Values entered for upload are moved into a memguard enclave as soon as
// they are collected. The enclave is encrypted at rest in memory and the
// plaintext is only materialised inside a locked, guard-paged buffer while
// it is being sealed for GitHub:
//
//	v, err := secure.NewSecretValue(input) // input is wiped
//	if err != nil {
//	    return err
//	}
//	defer v.Destroy()
//
//	err = v.Use(func(plaintext []byte) error {
//	    sealed, err = sealedbox.Seal(plaintext, recipient)
//	    return err
//	})
//
// Values are retained (encrypted) only while a retry may still need them;
// the batch destroys them once an operation is resolved.
//
// On Linux mlock is subject to RLIMIT_MEMLOCK. memguard degrades to
// ordinary allocation when it cannot lock pages.
package secure
