// Package parser extracts multiple-choice questions from markdown decks.
//
// A deck entry is a block of prefixed lines:
//
//	Q: What does FSRS schedule?
//	O: File systems
//	O: Review intervals
//	A: Review intervals
//	E: FSRS computes the next review from a memory model.
//	C: spaced-repetition
//
// Entries are separated by "---" or by the next Q: line. O:, E:, and C: are
// optional; a bare Q/A pair is a valid open-ended question.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/recallforge/recallforge/internal/domain"
)

const (
	questionPrefix    = "Q:"
	optionPrefix      = "O:"
	answerPrefix      = "A:"
	explanationPrefix = "E:"
	contextPrefix     = "C:"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingOption
	readingAnswer
	readingExplanation
	readingContext
)

// ParseFile reads a file from the given path and extracts all deck entries.
func ParseFile(path string) ([]domain.DeckEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all deck entries.
func Parse(r io.Reader) ([]domain.DeckEntry, error) {
	scanner := bufio.NewScanner(r)
	var entries []domain.DeckEntry
	var current domain.DeckEntry
	var currentBlock []string
	currentState := seeking

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.Join(currentBlock, "\n")
		switch currentState {
		case readingQuestion:
			current.Text = content
		case readingOption:
			current.Options = append(current.Options, content)
		case readingAnswer:
			current.Answer = content
		case readingExplanation:
			current.Explanation = content
		case readingContext:
			current.Context = content
		}
		currentBlock = nil
	}

	finishEntry := func() {
		flushBlock()
		if current.Text != "" {
			entries = append(entries, current)
		}
		current = domain.DeckEntry{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishEntry()
			continue
		}

		prefix, next := matchPrefix(line)
		if next == seeking {
			// Plain line: continuation of the current block.
			if currentState != seeking {
				currentBlock = append(currentBlock, line)
			}
			continue
		}

		flushBlock()
		if next == readingQuestion && currentState != seeking {
			// A new question always starts a new entry.
			finishEntry()
		}
		currentState = next
		currentBlock = append(currentBlock, strings.TrimPrefix(strings.TrimPrefix(line, prefix), " "))
	}

	finishEntry() // Finish the very last entry in the file.

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// matchPrefix returns the matched field prefix and its reading state, or
// (_, seeking) for a plain line.
func matchPrefix(line string) (string, state) {
	switch {
	case strings.HasPrefix(line, questionPrefix):
		return questionPrefix, readingQuestion
	case strings.HasPrefix(line, optionPrefix):
		return optionPrefix, readingOption
	case strings.HasPrefix(line, answerPrefix):
		return answerPrefix, readingAnswer
	case strings.HasPrefix(line, explanationPrefix):
		return explanationPrefix, readingExplanation
	case strings.HasPrefix(line, contextPrefix):
		return contextPrefix, readingContext
	default:
		return "", seeking
	}
}
