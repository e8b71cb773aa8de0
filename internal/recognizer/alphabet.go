package recognizer

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrAlphabet reports an alphabet that cannot be used for decoding.
var ErrAlphabet = errors.New("invalid alphabet")

// BlankToken marks the blank symbol in alphabet files.
const BlankToken = "<blank>"

const (
	defaultSymbols = "0123456789abcdefghijklmnopqrstuvwxyz"
	openVINOBlank  = "#"
)

// Alphabet maps class indices of a recognition model to symbols.
// Exactly one index is the CTC blank; its symbol is never emitted.
type Alphabet struct {
	Symbols []string `json:"symbols"`
	Blank   int      `json:"blank"`
}

// DefaultAlphabet returns the 37-class alphabet with blank at index 0
// followed by the digits and lowercase latin letters.
func DefaultAlphabet() Alphabet {
	a, _ := NewAlphabet(defaultSymbols, -1)
	return a
}

// OpenVINOAlphabet returns the alphabet of the text-recognition-0012 family:
// digits and letters followed by '#' as blank at index 36.
func OpenVINOAlphabet() Alphabet {
	a, _ := NewAlphabet(defaultSymbols+openVINOBlank, len(defaultSymbols))
	return a
}

// NewAlphabet builds an alphabet from one rune per class. A negative blank
// prepends a blank class at index 0; otherwise chars[blank] is the blank.
func NewAlphabet(chars string, blank int) (Alphabet, error) {
	symbols := make([]string, 0, len(chars)+1)
	if blank < 0 {
		symbols = append(symbols, BlankToken)
		blank = 0
	}
	for _, r := range chars {
		symbols = append(symbols, string(r))
	}
	a := Alphabet{Symbols: symbols, Blank: blank}
	if err := a.Validate(); err != nil {
		return Alphabet{}, err
	}
	return a, nil
}

// Validate checks the blank index and that no symbol repeats.
func (a Alphabet) Validate() error {
	if len(a.Symbols) < 2 {
		return fmt.Errorf("%w: need at least one symbol besides blank, got %d classes", ErrAlphabet, len(a.Symbols))
	}
	if a.Blank < 0 || a.Blank >= len(a.Symbols) {
		return fmt.Errorf("%w: blank index %d out of range [0,%d)", ErrAlphabet, a.Blank, len(a.Symbols))
	}
	seen := make(map[string]int, len(a.Symbols))
	for i, s := range a.Symbols {
		if i == a.Blank {
			continue
		}
		if s == "" {
			return fmt.Errorf("%w: empty symbol at index %d", ErrAlphabet, i)
		}
		if j, ok := seen[s]; ok {
			return fmt.Errorf("%w: symbol %q at indices %d and %d", ErrAlphabet, s, j, i)
		}
		seen[s] = i
	}
	return nil
}

// Size returns the number of classes, blank included.
func (a Alphabet) Size() int { return len(a.Symbols) }

// Symbol returns the symbol for class i, or "" for the blank or out-of-range indices.
func (a Alphabet) Symbol(i int) string {
	if i < 0 || i >= len(a.Symbols) || i == a.Blank {
		return ""
	}
	return a.Symbols[i]
}

// Index returns the class index of a symbol.
func (a Alphabet) Index(sym string) (int, bool) {
	for i, s := range a.Symbols {
		if i != a.Blank && s == sym {
			return i, true
		}
	}
	return -1, false
}

// LoadAlphabet reads one symbol per line. A line equal to BlankToken marks the
// blank; without one, a blank class is prepended at index 0.
func LoadAlphabet(path string) (Alphabet, error) {
	f, err := os.Open(path) //nolint:gosec // G304: alphabet path comes from configuration
	if err != nil {
		return Alphabet{}, fmt.Errorf("open alphabet: %w", err)
	}
	defer func() { _ = f.Close() }()

	var symbols []string
	blank := -1
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		if line == "" {
			continue
		}
		if line == BlankToken {
			if blank >= 0 {
				return Alphabet{}, fmt.Errorf("%w: %s appears twice in %s", ErrAlphabet, BlankToken, path)
			}
			blank = len(symbols)
		}
		symbols = append(symbols, line)
	}
	if err := scanner.Err(); err != nil {
		return Alphabet{}, fmt.Errorf("read alphabet: %w", err)
	}
	if blank < 0 {
		symbols = append([]string{BlankToken}, symbols...)
		blank = 0
	}
	a := Alphabet{Symbols: symbols, Blank: blank}
	if err := a.Validate(); err != nil {
		return Alphabet{}, err
	}
	return a, nil
}
