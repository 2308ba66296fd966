package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads operator answers line by line. Answers given as flags or
// environment variables skip the question.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	// fd is the terminal to read passwords from without echo, or -1.
	fd int
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

// ask prints label and returns the answer line without its line ending.
func (p *prompter) ask(label, preset string) (string, error) {
	if preset != "" {
		return preset, nil
	}
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading %q: %w", strings.TrimSpace(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// secret is ask without echo when reading from a terminal.
func (p *prompter) secret(label, preset string) (string, error) {
	if preset != "" || p.fd < 0 {
		return p.ask(label, preset)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

func rule(w io.Writer) {
	fmt.Fprintln(w, "----------------------")
}

func printWelcome(w io.Writer, baseURL string) {
	rule(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "✼ ҉ ✼ Welcome to the Power BI Server File Downloader! ✼ ҉ ✼")
	fmt.Fprintf(w, "This tool will download files from the Power BI server(%s).\n", baseURL)
	fmt.Fprintln(w, "Please enter your username and password to authenticate.")
	fmt.Fprintln(w)
}

func printProcessStart(w io.Writer) {
	rule(w)
	fmt.Fprintln(w, "|                    |")
	fmt.Fprintln(w, "| **Process Start**  |")
	fmt.Fprintln(w, "|                    |")
	rule(w)
}

func printFarewell(w io.Writer) {
	rule(w)
	fmt.Fprintln(w, "☆♬○♩●♪✧♩((ヽ( ᐛ )ﾉ))♩✧♪●♩○♬☆")
	fmt.Fprintln(w, "Successfully processed all items! Bye!")
	rule(w)
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "------Error------")
	fmt.Fprintf(w, format+"\n", args...)
}
