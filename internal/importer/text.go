package importer

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/piwi3910/CutYield/internal/model"
)

// dimensionPattern matches "WxH" with x, X, × or * as separator.
var dimensionPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*[xX×*]\s*([0-9]+(?:\.[0-9]+)?)\s*$`)

// ParsePieceList reads the plain text piece list format. Non-blank lines
// alternate between a quantity and a size:
//
//	1
//	1200x900
//	45
//	150x500
//
// Errors wrap ErrMalformedPieceList and name the offending line.
func ParsePieceList(r io.Reader) ([]model.PieceSpec, error) {
	scanner := bufio.NewScanner(r)

	var specs []model.PieceSpec
	pendingQty := 0
	pendingLine := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if pendingQty == 0 {
			qty, err := strconv.Atoi(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid quantity %q: %w", lineNo, line, ErrMalformedPieceList)
			}
			if qty <= 0 {
				return nil, fmt.Errorf("line %d: quantity must be positive, got %d: %w", lineNo, qty, ErrMalformedPieceList)
			}
			pendingQty = qty
			pendingLine = lineNo
			continue
		}

		w, h, err := parseDimensions(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %v: %w", lineNo, err, ErrMalformedPieceList)
		}
		specs = append(specs, model.PieceSpec{Width: w, Height: h, Quantity: pendingQty})
		pendingQty = 0
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading piece list: %w", err)
	}

	if pendingQty != 0 {
		return nil, fmt.Errorf("line %d: quantity without a size line: %w", pendingLine, ErrMalformedPieceList)
	}
	return specs, nil
}

// ParsePieceListString is ParsePieceList over a string.
func ParsePieceListString(s string) ([]model.PieceSpec, error) {
	return ParsePieceList(strings.NewReader(s))
}

func parseDimensions(line string) (float64, float64, error) {
	m := dimensionPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid size %q, expected WxH", line)
	}
	w, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width %q", m[1])
	}
	h, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height %q", m[2])
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q must be positive", line)
	}
	return w, h, nil
}
