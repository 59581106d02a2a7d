package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword()
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// promptNewPassword asks for a password twice. A blank first entry disables
// encryption and skips the confirmation.
func promptNewPassword(w io.Writer) (string, error) {
	pw, err := promptPassword(w, "Password (blank to disable encryption): ")
	if err != nil || pw == "" {
		return "", err
	}
	confirm, err := promptPassword(w, "Password confirmation: ")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", fmt.Errorf("password confirmation doesn't match")
	}
	return pw, nil
}
