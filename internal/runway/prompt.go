// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package runway

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// NormalizePrompt returns the NFC form of prompt after checking it is
// non-empty and within MaxPromptLength UTF-16 code units.
func NormalizePrompt(prompt string) (string, error) {
	p := norm.NFC.String(strings.TrimSpace(prompt))
	if p == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if n := utf16Len(p); n > MaxPromptLength {
		return "", fmt.Errorf("%w: prompt is %d UTF-16 code units, limit is %d", ErrInvalidRequest, n, MaxPromptLength)
	}
	return p, nil
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += max(utf16.RuneLen(r), 1)
	}
	return n
}

func validateRequest(req GenerateRequest) error {
	if req.Duration != 0 && !slices.Contains(ValidDurations, req.Duration) {
		return fmt.Errorf("%w: duration %d not in %v", ErrInvalidRequest, req.Duration, ValidDurations)
	}
	if req.ImageURL != "" && !strings.HasPrefix(req.ImageURL, "https://") && !strings.HasPrefix(req.ImageURL, "data:") {
		return fmt.Errorf("%w: image_url must be an https URL or data URI", ErrInvalidRequest)
	}
	return nil
}
