package translate

import (
	"context"
	"sync"

	"github.com/abadojack/whatlanggo"
)

// TrigramIdentifier detects a text's language from its script and trigram
// profile. Detections below the confidence threshold are reported as
// Undetermined.
type TrigramIdentifier struct {
	threshold float64

	mu     sync.Mutex
	closed bool
}

// NewTrigramIdentifier creates an identifier with the given confidence
// threshold in [0, 1].
func NewTrigramIdentifier(threshold float64) *TrigramIdentifier {
	return &TrigramIdentifier{threshold: threshold}
}

// Identify returns the ISO 639-1 code of the most likely language of text.
func (i *TrigramIdentifier) Identify(ctx context.Context, text string) (string, error) {
	if i.IsClosed() {
		return "", ErrIdentifierClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info := whatlanggo.Detect(text)
	// no script detected
	if info.Script == nil || info.Lang < 0 {
		return Undetermined, nil
	}
	if info.Confidence < i.threshold {
		return Undetermined, nil
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return Undetermined, nil
	}
	return code, nil
}

// Close releases the identifier. Later calls to Identify fail.
func (i *TrigramIdentifier) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (i *TrigramIdentifier) IsClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}
