package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Output formats accepted by --format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatText  = "text"
)

// addFormatFlag adds a validated --format/-f flag.
func addFormatFlag(cmd *cobra.Command, target *string, def string, formats ...string) {
	cmd.Flags().StringVarP(target, "format", "f", def, "Output format ("+strings.Join(formats, "|")+")")
	AddFlagValidation(cmd, "format", func(format string) error {
		return ValidateFormat(format, formats)
	})
}

// ValidateFormat reports an error naming the accepted formats.
func ValidateFormat(format string, formats []string) error {
	for _, f := range formats {
		if strings.EqualFold(format, f) {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q, expected one of: %s", format, strings.Join(formats, ", "))
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort checks a port flag value.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}
