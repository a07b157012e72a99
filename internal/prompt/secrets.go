package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/ghsecrets/internal/secure"
	"github.com/systmms/ghsecrets/internal/update"
	"github.com/systmms/ghsecrets/internal/validation"
)

// ReadSecrets collects key/value pairs until an empty key is entered.
// Values are read without echo. Entering a key again replaces its value.
func (p *Prompter) ReadSecrets(ctx context.Context) ([]update.SecretPair, error) {
	var pairs []update.SecretPair
	fail := func(err error) ([]update.SecretPair, error) {
		for _, pair := range pairs {
			secure.Wipe(pair.Value)
		}
		return nil, err
	}

	fmt.Fprintln(p.out, p.info.Sprint("Enter secrets. Leave the key empty to finish."))
	for {
		fmt.Fprint(p.out, "Secret key: ")
		key, err := p.readLine(ctx)
		if err != nil && !errors.Is(err, ErrCancelled) {
			return fail(err)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			break
		}
		if err := validation.SecretName(key); err != nil {
			fmt.Fprintln(p.out, p.warn.Sprintf("⚠ %v", err))
			continue
		}

		fmt.Fprintf(p.out, "Value for %s: ", key)
		value, err := p.readHidden(ctx)
		if err != nil {
			return fail(err)
		}
		if err := validation.SecretValue(value); err != nil {
			secure.Wipe(value)
			fmt.Fprintln(p.out, p.warn.Sprintf("⚠ %v", err))
			continue
		}

		replaced := false
		for i := range pairs {
			if pairs[i].Key == key {
				secure.Wipe(pairs[i].Value)
				pairs[i].Value = value
				replaced = true
			}
		}
		if replaced {
			fmt.Fprintf(p.out, "✓ Secret '%s' updated\n", key)
		} else {
			pairs = append(pairs, update.SecretPair{Key: key, Value: value})
			fmt.Fprintf(p.out, "✓ Secret '%s' added\n", key)
		}
	}

	if len(pairs) == 0 {
		return nil, errors.New("no secrets entered")
	}
	return pairs, nil
}
