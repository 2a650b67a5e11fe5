package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Seconds is a duration written either as plain seconds ("1", "0.5") or as a
// Go duration ("1s", "500ms").
type Seconds time.Duration

func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

func (s Seconds) String() string {
	return time.Duration(s).String()
}

func ParseSeconds(value string) (Seconds, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return Seconds(time.Duration(f * float64(time.Second))), nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: want seconds or a duration like 1s", value)
	}

	return Seconds(d), nil
}

func (s *Seconds) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}

	parsed, err := ParseSeconds(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	*s = parsed
	return nil
}

func (s Seconds) MarshalYAML() (any, error) {
	return time.Duration(s).String(), nil
}

// Set and Type let Seconds back a command-line flag.
func (s *Seconds) Set(value string) error {
	parsed, err := ParseSeconds(value)
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}

func (s *Seconds) Type() string {
	return "seconds"
}
