// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/shotline/internal/storyboard"
)

func runExportCLI(args []string) int {
	return export(args, os.Stdin, os.Stdout, os.Stderr)
}

// export reads an assistant transcript and writes the storyboard it
// contains as JSON, to stdout or atomically to --out.
func export(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("shotline export", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var in, out string
	fs.StringVar(&in, "in", "-", "transcript file to parse (- for stdin)")
	fs.StringVar(&out, "out", "-", "destination JSON file (- for stdout)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	content, err := readInput(strings.TrimSpace(in), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading transcript: %v\n", err)
		return 1
	}

	sb, err := storyboard.Parse(string(content))
	if err != nil {
		fmt.Fprintf(stderr, "No storyboard exported (%s): %v\n", storyboard.ParseOutcome(err), err)
		return 1
	}

	data, err := json.MarshalIndent(sb, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Failed to encode storyboard: %v\n", err)
		return 1
	}
	data = append(data, '\n')

	out = strings.TrimSpace(out)
	if out == "" || out == "-" {
		if _, err := stdout.Write(data); err != nil {
			return 1
		}
		return 0
	}
	if err := writeAtomic(out, data); err != nil {
		fmt.Fprintf(stderr, "Failed to write %s: %v\n", out, err)
		return 1
	}
	fmt.Fprintf(stderr, "Exported %d shots (%.1fs) to %s\n", len(sb.Shots), sb.TotalDuration, out)
	return 0
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeAtomic(path string, data []byte) error {
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write storyboard: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace file: %w", err)
	}
	return nil
}
