package config

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// PromptPassword asks for the device password when none is configured
// and in is an interactive terminal. It is a no-op otherwise.
func (c *Config) PromptPassword(in *os.File, out io.Writer) error {
	if c.Device.Password != "" || in == nil || !term.IsTerminal(int(in.Fd())) {
		return nil
	}

	fmt.Fprintf(out, "Password for %s@%s: ", c.Device.Username, c.Device.Host)
	pw, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	c.Device.Password = string(pw)
	return nil
}
