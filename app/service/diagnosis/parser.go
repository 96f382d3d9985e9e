package diagnosis

import (
	"math"
	"strconv"
	"strings"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/oops"
)

const labelDelimiter = ":"

var defaultLabels = [3]string{"傾向", "強さ", "コメント"}

// Parser turns the model's three-line answer into a Result.
//
// The expected shape is
//
//	<label>: <direction score>
//	<label>: <intensity score>
//	<label>: <comment>
//
// Only the first three lines are read. In strict mode every label must
// start with the expected label and the comment must not be empty.
type Parser struct {
	strict bool
	labels [3]string
}

func NewParser(strict bool) *Parser {
	return &Parser{
		strict: strict,
		labels: defaultLabels,
	}
}

// Parse reads raw with the lenient parser.
func Parse(raw string) (*Result, error) {
	return NewParser(false).Parse(raw)
}

func (p *Parser) Parse(raw string) (*Result, error) {
	lines := pie.Map(strings.Split(strings.TrimSpace(raw), "\n"), strings.TrimSpace)
	if len(lines) < 3 {
		return nil, malformed(raw, "expected at least 3 lines, got %d", len(lines))
	}

	var values [3]string

	for i := range values {
		label, value, ok := splitLabel(lines[i])
		if !ok {
			return nil, malformed(raw, "line %d has no label delimiter", i+1)
		}

		if p.strict && !strings.HasPrefix(label, p.labels[i]) {
			return nil, malformed(raw, "line %d: expected label %q, got %q", i+1, p.labels[i], label)
		}

		values[i] = value
	}

	direction, err := parseScore(values[0])
	if err != nil {
		return nil, malformed(raw, "direction score %q is not a number", values[0])
	}

	intensity, err := parseScore(values[1])
	if err != nil {
		return nil, malformed(raw, "intensity score %q is not a number", values[1])
	}

	if p.strict && values[2] == "" {
		return nil, malformed(raw, "comment is empty")
	}

	return &Result{
		Direction: direction,
		Intensity: intensity,
		Comment:   values[2],
	}, nil
}

// splitLabel splits line at its first ASCII colon. Later colons stay in the
// value; full-width colons are part of the label or value.
func splitLabel(line string) (label, value string, ok bool) {
	label, value, ok = strings.Cut(line, labelDelimiter)
	if !ok {
		return "", "", false
	}

	return strings.TrimSpace(label), strings.TrimSpace(value), true
}

// parseScore accepts finite decimal numbers only. ParseFloat alone would let
// NaN and Inf through.
func parseScore(s string) (float64, error) {
	score, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, strconv.ErrSyntax
	}

	return score, nil
}

func malformed(raw, format string, args ...any) error {
	return oops.
		In("diagnosis").
		Code(CodeMalformedResponse).
		With("raw", raw).
		Wrapf(ErrMalformedResponse, format, args...)
}
