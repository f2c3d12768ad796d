package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/kaizen/core"
)

// parseCalls turns "capability[:key=value,...]" arguments into calls.
// Values that parse as JSON keep their type; anything else is a string.
// Values cannot contain commas; use a calls file for those.
func parseCalls(args []string) ([]core.CapabilityCall, error) {
	calls := make([]core.CapabilityCall, 0, len(args))
	for _, arg := range args {
		name, rest, _ := strings.Cut(arg, ":")
		params := core.Payload{}
		if rest != "" {
			for _, pair := range strings.Split(rest, ",") {
				k, v, ok := strings.Cut(pair, "=")
				if !ok || k == "" {
					return nil, fmt.Errorf("invalid parameter %q in %q, want key=value", pair, arg)
				}
				params[k] = parseValue(v)
			}
		}
		c, err := core.NewCall(name, params)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, nil
}

// parseAssignments turns "key=value" arguments into state writes, in order.
func parseAssignments(args []string) ([]string, []any, error) {
	keys := make([]string, 0, len(args))
	values := make([]any, 0, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, nil, fmt.Errorf("invalid assignment %q, want key=value", arg)
		}
		keys = append(keys, k)
		values = append(values, parseValue(v))
	}
	return keys, values, nil
}

func parseValue(s string) any {
	if v, err := core.DecodeValue([]byte(s)); err == nil {
		return v
	}
	return s
}

// readCallsFile reads a JSON array of {"capability", "params"} objects.
func readCallsFile(path string) ([]core.CapabilityCall, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calls file: %w", err)
	}
	var raw []core.CapabilityCall
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse calls file: %w", err)
	}
	calls := make([]core.CapabilityCall, 0, len(raw))
	for _, c := range raw {
		call, err := core.NewCall(c.Capability, c.Params)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func collectCalls(args []string, file string) ([]core.CapabilityCall, error) {
	var calls []core.CapabilityCall
	if file != "" {
		fromFile, err := readCallsFile(file)
		if err != nil {
			return nil, err
		}
		calls = append(calls, fromFile...)
	}
	fromArgs, err := parseCalls(args)
	if err != nil {
		return nil, err
	}
	calls = append(calls, fromArgs...)
	if len(calls) == 0 {
		return nil, fmt.Errorf("no capability calls given")
	}
	return calls, nil
}
