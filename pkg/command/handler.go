// Package command implements the line-oriented tuning protocol that mutates
// the live pedal configuration.
//
// Every accepted line produces a reply on the protocol writer: "OK ..." on
// success, a CFG status line for PRINT, or "ERR ..." when the line is rejected.
package command

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/itohio/gopedal/pkg/record"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownKey     = errors.New("unknown key")
	ErrInvalidValue   = errors.New("invalid value")
	ErrSyntax         = errors.New("malformed command")
)

// LoadCell is the part of the load-cell driver the handler reconfigures.
type LoadCell interface {
	Init(dataPin, clockPin uint8)
}

// Command is a protocol keyword and its action.
type Command struct {
	Name        string
	Args        int
	Usage       string
	Description string
	Run         func(h *Handler, args []string) error
}

var (
	LoadCommand = &Command{
		Name:        "LOAD",
		Description: "Reload the configuration from storage.",
		Run: func(h *Handler, _ []string) error {
			r, err := h.store.Load()
			if err != nil {
				return err
			}
			*h.cfg = r
			h.initLoadCell()
			h.reply("OK LOAD")
			return nil
		},
	}
	SaveCommand = &Command{
		Name:        "SAVE",
		Description: "Persist the live configuration.",
		Run: func(h *Handler, _ []string) error {
			if err := h.store.Save(*h.cfg); err != nil {
				return err
			}
			h.reply("OK SAVE")
			return nil
		},
	}
	PrintCommand = &Command{
		Name:        "PRINT",
		Description: "Print the live configuration as a CFG line.",
		Run: func(h *Handler, _ []string) error {
			h.reply(h.cfg.String())
			return nil
		},
	}
	ResetCommand = &Command{
		Name:        "RESETCONFIG",
		Description: "Restore and persist the compiled-in defaults.",
		Run: func(h *Handler, _ []string) error {
			r, err := h.store.Reset()
			if err != nil {
				return err
			}
			*h.cfg = r
			h.initLoadCell()
			h.reply("OK RESETCONFIG")
			return nil
		},
	}
	SetCommand = &Command{
		Name:        "SET",
		Args:        2,
		Usage:       "SET <key> <value>",
		Description: "Change one field of the live configuration (not persisted).",
		Run: func(h *Handler, args []string) error {
			name, value := args[0], args[1]
			key, ok := keyIndex[name]
			if !ok {
				return fmt.Errorf("%w %s", ErrUnknownKey, name)
			}

			next := *h.cfg
			if err := key.apply(&next, value); err != nil {
				return fmt.Errorf("SET %s: %w", name, err)
			}
			if err := next.Validate(); err != nil {
				return fmt.Errorf("SET %s: %w", name, err)
			}

			*h.cfg = next
			if key.loadCell {
				h.initLoadCell()
			}
			h.reply("OK SET " + name + " " + value)
			return nil
		},
	}
	HelpCommand = &Command{
		Name:        "HELP",
		Description: "List commands and SET keys.",
		Run: func(h *Handler, _ []string) error {
			for _, cmd := range commands {
				usage := cmd.Usage
				if usage == "" {
					usage = cmd.Name
				}
				h.reply("INFO " + usage + ": " + cmd.Description)
			}
			for _, k := range keys {
				h.reply("INFO   " + k.Name + ": " + k.Description)
			}
			h.reply("INFO HELP: List commands and SET keys.")
			h.reply("OK HELP")
			return nil
		},
	}
)

var commands = []*Command{
	LoadCommand,
	SaveCommand,
	PrintCommand,
	ResetCommand,
	SetCommand,
}

var commandIndex = func() map[string]*Command {
	m := map[string]*Command{
		HelpCommand.Name: HelpCommand,
	}
	for _, cmd := range commands {
		m[cmd.Name] = cmd
	}
	return m
}()

// Handler applies protocol lines to a live configuration record.
type Handler struct {
	cfg      *record.Record
	store    *record.Store
	loadCell LoadCell
	out      io.Writer
}

// New creates a handler mutating cfg. Replies are written to out; loadCell
// may be nil when no load cell is attached.
func New(cfg *record.Record, store *record.Store, loadCell LoadCell, out io.Writer) *Handler {
	if out == nil {
		out = io.Discard
	}
	return &Handler{
		cfg:      cfg,
		store:    store,
		loadCell: loadCell,
		out:      out,
	}
}

// Handle interprets one complete line. Rejected lines are answered with an
// ERR reply and the reason is returned.
func (h *Handler) Handle(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := commandIndex[fields[0]]
	if !ok {
		return h.fail(fmt.Errorf("%w %s", ErrUnknownCommand, fields[0]))
	}
	if len(fields)-1 != cmd.Args {
		usage := cmd.Usage
		if usage == "" {
			usage = cmd.Name
		}
		return h.fail(fmt.Errorf("%w: usage %s", ErrSyntax, usage))
	}

	if err := cmd.Run(h, fields[1:]); err != nil {
		return h.fail(err)
	}
	return nil
}

func (h *Handler) fail(err error) error {
	h.reply("ERR " + err.Error())
	return err
}

func (h *Handler) reply(line string) {
	fmt.Fprintln(h.out, line)
}

func (h *Handler) initLoadCell() {
	if h.loadCell != nil {
		h.loadCell.Init(h.cfg.Pins.LoadCellData, h.cfg.Pins.LoadCellClock)
	}
}
