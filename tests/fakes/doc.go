// Package fakes provides test doubles for ghsecrets client interfaces.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior, including queued failures per call.
//
// Usage:
//
//	fake := fakes.NewFakeGitHubClient()
//	fake.AddRepository("acme/api")
//	fake.SetSecret("acme/api", "API_KEY", time.Now())
//	fake.FailPublicKey("acme/web", fakes.NetworkError("public key"))
//	batch, err := update.NewBatch(update.Options{Client: fake}, repos, secrets)
package fakes
