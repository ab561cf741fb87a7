package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads answers from stdin. Passwords are read without echo when
// stdin is a terminal and as plain lines otherwise.
type prompter struct {
	reader *bufio.Reader
}

func newPrompter() *prompter {
	return &prompter{reader: bufio.NewReader(os.Stdin)}
}

func (p *prompter) password(prefix string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", prefix)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pass, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(pass), nil
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// choice repeats the prompt until one of valid is entered.
func (p *prompter) choice(prefix string, valid []string, defaultEntry string) (string, error) {
	prompt := fmt.Sprintf("%s (%s)", prefix, strings.Join(valid, "/"))
	if defaultEntry != "" {
		prompt += fmt.Sprintf(" [%s]", defaultEntry)
	}
	for {
		fmt.Fprintf(os.Stderr, "%s: ", prompt)
		reply, err := p.reader.ReadString('\n')
		if err != nil && reply == "" {
			return "", err
		}
		reply = strings.ToLower(strings.TrimSpace(reply))
		if reply == "" {
			reply = defaultEntry
		}
		for _, v := range valid {
			if reply == v {
				return reply, nil
			}
		}
	}
}
