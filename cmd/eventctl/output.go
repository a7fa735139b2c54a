package main

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

type format string

const (
	formatYAML format = "yaml"
	formatJSON format = "json"
)

func outputFormat(s string) (format, error) {
	switch format(s) {
	case formatYAML, formatJSON:
		return format(s), nil
	case "":
		return formatYAML, nil
	}
	return "", fmt.Errorf("invalid output format %q: must be yaml or json", s)
}

func render(w io.Writer, f format, v any) error {
	switch f {
	case formatJSON:
		data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}
