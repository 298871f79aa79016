package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/seatyyy/ExecuMate/plugin/calendar"
)

// chatSession is the part of client.Session the input loop drives.
type chatSession interface {
	Send(text string) bool
	ConnectCalendar() bool
	Logout() bool
	SetRange(r calendar.Range) bool
	RefreshCalendar() bool
	AcceptReminder(id string) error
	DeclineReminder(id string) error
}

// reminderLookup resolves what the user typed after /accept or /decline.
type reminderLookup interface {
	reminderID(ref string) (string, bool)
}

const helpText = `Commands:
  /connect         link your Google Calendar
  /logout          disconnect your calendar
  /range <r>       show today, week or upcoming
  /refresh         fetch the calendar now
  /accept <n>      accept reminder n
  /decline <n>     decline reminder n
  /help            show this help
  /quit            leave
Anything else is sent as a chat message.`

var errQuit = errors.New("quit")

type command struct {
	name string
	arg  string
}

// parseCommand splits a slash command from its argument. Plain text is
// returned as a "say" command.
func parseCommand(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, false
	}
	if !strings.HasPrefix(line, "/") {
		return command{name: "say", arg: line}, true
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// dispatch runs one command. It returns errQuit when the user leaves.
func dispatch(cmd command, s chatSession, reminders reminderLookup, out io.Writer) error {
	switch cmd.name {
	case "say":
		s.Send(cmd.arg)
	case "connect":
		s.ConnectCalendar()
	case "logout":
		s.Logout()
	case "refresh":
		s.RefreshCalendar()
	case "range":
		r, err := calendar.ParseRange(cmd.arg)
		if err != nil || cmd.arg == "" {
			_, _ = fmt.Fprintln(out, "usage: /range today|week|upcoming")
			return nil
		}
		s.SetRange(r)
	case "accept", "decline":
		id, ok := reminders.reminderID(cmd.arg)
		if !ok {
			_, _ = fmt.Fprintf(out, "no reminder %q\n", cmd.arg)
			return nil
		}
		act := s.AcceptReminder
		if cmd.name == "decline" {
			act = s.DeclineReminder
		}
		if err := act(id); err != nil {
			_, _ = fmt.Fprintln(out, err.Error())
		}
	case "help":
		_, _ = fmt.Fprintln(out, helpText)
	case "quit", "exit":
		return errQuit
	default:
		_, _ = fmt.Fprintf(out, "unknown command /%s, type /help\n", cmd.name)
	}
	return nil
}

// readCommands dispatches lines until ctx is done, lines is closed or the
// user quits.
func readCommands(ctx context.Context, lines <-chan string, s chatSession, reminders reminderLookup, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, ok := parseCommand(line)
			if !ok {
				continue
			}
			if err := dispatch(cmd, s, reminders, out); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
		}
	}
}
