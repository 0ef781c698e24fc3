package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is a scripted generator for tests and offline use.
type Fake struct {
	// Fragments are emitted in order by GenerateStream and joined by Generate.
	Fragments []string
	// Err, when set, fails the call after FailAfter fragments were emitted.
	Err       error
	FailAfter int

	mu      sync.Mutex
	prompts []Prompt
}

// Prompts returns every prompt the fake received.
func (f *Fake) Prompts() []Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Prompt(nil), f.prompts...)
}

func (f *Fake) record(p Prompt) {
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()
}

// Generate returns the joined fragments.
func (f *Fake) Generate(ctx context.Context, p Prompt) (string, error) {
	f.record(p)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationService, f.Err)
	}
	return strings.Join(f.Fragments, ""), nil
}

// GenerateStream emits the fragments one by one.
func (f *Fake) GenerateStream(ctx context.Context, p Prompt, onFragment func(string) error) error {
	f.record(p)
	for i, frag := range f.Fragments {
		if f.Err != nil && i >= f.FailAfter {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onFragment(frag); err != nil {
			return err
		}
	}
	if f.Err != nil {
		return fmt.Errorf("%w: %w", ErrGenerationService, f.Err)
	}
	return nil
}
