package main

import (
	"bufio"
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/flagx"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errPasswordMismatch = errors.New("passwords do not match")

// getSimpleText prints a prompt to w and reads a single trimmed line.
// If EOF occurs after some input was read, the partial line is returned.
func getSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// getPassword reads a password from the terminal without echo.
// The caller should wipe the returned slice.
func getPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// collectInput returns the admin email (from -email or a prompt) and a
// password entered twice.
func collectInput(args []string, in io.Reader, out io.Writer) (string, string, error) {
	var email string
	fs := flag.NewFlagSet("seedadmin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&email, "email", "", "admin email; must exist in the HR directory")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-email"})); err != nil {
		return "", "", err
	}

	if email == "" {
		var err error
		email, err = getSimpleText(bufio.NewReader(in), "Admin email", out)
		if err != nil {
			return "", "", err
		}
	}

	pw, err := getPassword(out, "Enter password: ")
	if err != nil {
		return "", "", err
	}
	defer common.WipeByteArray(pw)

	confirm, err := getPassword(out, "Repeat password: ")
	if err != nil {
		return "", "", err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(pw, confirm) {
		return "", "", errPasswordMismatch
	}
	return email, string(pw), nil
}
