package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// prompt asks for a value on In when flagValue is blank.
func (c *commandContext) prompt(label, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if c.lines == nil {
		c.lines = bufio.NewReader(c.In)
	}
	if err := writef(c.Out, "%s: ", label); err != nil {
		return "", fmt.Errorf("print prompt: %w", err)
	}
	line, err := c.lines.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}
