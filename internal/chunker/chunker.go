package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of trailing characters carried into the next chunk
	DefaultChunkOverlap = 200
)

// ErrInvalidChunkConfig is returned when the size and overlap do not make sense together.
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// DefaultSeparators are tried in order: paragraph break, line break, space,
// then single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker bounds fragment size by recursively splitting on separators.
type Chunker struct {
	maxSize    int
	overlap    int
	separators []string
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.maxSize = size
	}
}

// WithOverlap sets how many characters of trailing context each chunk may
// share with the previous one.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// New creates a new Chunker. The overlap must be smaller than the chunk size.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		maxSize:    DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.maxSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkConfig, c.maxSize)
	}
	if c.overlap < 0 || c.overlap >= c.maxSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, c.overlap, c.maxSize)
	}

	return c, nil
}

// MaxSize returns the configured chunk size
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the configured overlap
func (c *Chunker) Overlap() int { return c.overlap }

// Split bounds the size of a fragment. Fragments that already fit are
// returned as is with chunk index 0. Every returned fragment carries the
// parent's metadata and a contiguous chunk index starting at zero.
func (c *Chunker) Split(frag types.Fragment) []types.Fragment {
	if runeLen(frag.Content) <= c.maxSize {
		return []types.Fragment{frag.WithChunk(frag.Content, 0)}
	}

	pieces := c.SplitText(frag.Content)
	out := make([]types.Fragment, 0, len(pieces))
	for i, piece := range pieces {
		out = append(out, frag.WithChunk(piece, i))
	}
	return out
}

// SplitText splits text into chunks of at most MaxSize characters.
func (c *Chunker) SplitText(text string) []string {
	return c.splitText(text, c.separators)
}

func (c *Chunker) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var final, small []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < c.maxSize {
			small = append(small, piece)
			continue
		}

		if len(small) > 0 {
			final = append(final, c.merge(small)...)
			small = nil
		}
		if len(next) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, c.splitText(piece, next)...)
		}
	}
	if len(small) > 0 {
		final = append(final, c.merge(small)...)
	}

	return final
}

// merge greedily joins pieces into chunks no longer than maxSize. When a chunk
// is emitted, pieces are dropped from its front until at most overlap
// characters remain; those carry over into the next chunk.
func (c *Chunker) merge(pieces []string) []string {
	var chunks, current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > c.maxSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ""))
			for total > c.overlap || (total+n > c.maxSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}

	return chunks
}

// splitKeepingSeparator splits text on sep and attaches each separator to the
// start of the piece that follows it, so the pieces concatenate back to text.
// An empty separator splits into single characters.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
