// Package cli parses the command lines of tacc and tactest and renders their help pages.
//
// Besides ordinary --long/-s options it understands switch families: a one-letter prefix
// followed by a name, like -Fcse, -Fno-dce or -Wall, used for optimizer passes and warnings.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type kind int

const (
	kindString kind = iota
	kindBool
	kindInt
	kindList
)

type Flag struct {
	Name    string
	Short   string
	Usage   string
	Meta    string // placeholder for the value in help, e.g. <file>
	Default string
	kind    kind
	set     func(string) error
}

// Switch is one member of a switch family. On is its state when the help page is drawn.
type Switch struct {
	Name  string
	Usage string
	On    bool
}

// Switches is a family of -<Prefix><name> and -<Prefix>no-<name> toggles. Each occurrence is
// handed to Apply as written (e.g. "-Fno-cse") in command-line order.
type Switches struct {
	Title  string
	Prefix string
	All    bool // -<Prefix>all and -<Prefix>no-all are accepted
	Items  []Switch
	Apply  func(arg string) error
}

type FlagSet struct {
	name    string
	flags   []*Flag
	byName  map[string]*Flag
	byShort map[string]*Flag
	groups  []*Switches
	args    []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{name: name, byName: make(map[string]*Flag), byShort: make(map[string]*Flag)}
}

// Args returns the positional arguments left after Parse
func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) add(fl *Flag) {
	if _, dup := f.byName[fl.Name]; dup {
		panic("cli: flag redefined: " + fl.Name)
	}
	f.flags = append(f.flags, fl)
	f.byName[fl.Name] = fl
	if fl.Short != "" {
		if _, dup := f.byShort[fl.Short]; dup {
			panic("cli: shorthand redefined: " + fl.Short)
		}
		f.byShort[fl.Short] = fl
	}
}

func (f *FlagSet) String(p *string, name, short, value, usage, meta string) {
	*p = value
	f.add(&Flag{Name: name, Short: short, Usage: usage, Meta: meta, Default: value, kind: kindString,
		set: func(s string) error { *p = s; return nil }})
}

func (f *FlagSet) Bool(p *bool, name, short string, value bool, usage string) {
	*p = value
	f.add(&Flag{Name: name, Short: short, Usage: usage, kind: kindBool,
		set: func(s string) error {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("invalid boolean value '%s' for --%s", s, name)
			}
			*p = v
			return nil
		}})
}

func (f *FlagSet) Int(p *int, name, short string, value int, usage, meta string) {
	*p = value
	f.add(&Flag{Name: name, Short: short, Usage: usage, Meta: meta, Default: strconv.Itoa(value), kind: kindInt,
		set: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("invalid integer value '%s' for --%s", s, name)
			}
			*p = n
			return nil
		}})
}

// List collects every occurrence of the flag, in order
func (f *FlagSet) List(p *[]string, name, short string, value []string, usage, meta string) {
	*p = value
	f.add(&Flag{Name: name, Short: short, Usage: usage, Meta: meta, kind: kindList,
		set: func(s string) error { *p = append(*p, s); return nil }})
}

func (f *FlagSet) AddSwitches(g *Switches) { f.groups = append(f.groups, g) }

func (f *FlagSet) switchesFor(arg string) *Switches {
	for _, g := range f.groups {
		if strings.HasPrefix(arg, "-"+g.Prefix) && len(arg) > len(g.Prefix)+1 {
			return g
		}
	}
	return nil
}

func (f *FlagSet) Parse(arguments []string) error {
	f.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		var (
			fl       *Flag
			val      string
			hasValue bool
		)
		switch {
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case arg == "-" || !strings.HasPrefix(arg, "-"):
			f.args = append(f.args, arg)
			continue
		case strings.HasPrefix(arg, "--"):
			var name string
			name, val, hasValue = strings.Cut(arg[2:], "=")
			if fl = f.byName[name]; fl == nil {
				return fmt.Errorf("unknown flag: --%s", name)
			}
		default:
			if g := f.switchesFor(arg); g != nil {
				if err := g.Apply(arg); err != nil {
					return err
				}
				continue
			}
			if fl = f.byShort[arg[1:2]]; fl == nil {
				return fmt.Errorf("unknown flag: %s", arg)
			}
			val = strings.TrimPrefix(arg[2:], "=")
			hasValue = val != ""
		}

		if !hasValue {
			if fl.kind == kindBool {
				val = "true"
			} else {
				if i+1 >= len(arguments) {
					return fmt.Errorf("flag needs an argument: --%s", fl.Name)
				}
				i++
				val = arguments[i]
			}
		}
		if err := fl.set(val); err != nil {
			return err
		}
	}
	return nil
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Repository  string
	FlagSet     *FlagSet
	Action      func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

// Run parses arguments and calls Action. Parse errors are printed with a short usage;
// errors from Action are returned untouched for the caller to report.
func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Show this page.")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", a.Name, err)
		a.WriteUsage(os.Stderr)
		return err
	}
	if help {
		a.WriteHelp(os.Stdout, terminalWidth())
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) WriteUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s %s\nRun '%s --help' for the list of options.\n", a.Name, a.Synopsis, a.Name)
}

// WriteHelp prints the options followed by every switch family, wrapping usage text to width
func (a *App) WriteHelp(w io.Writer, width int) {
	fs := a.FlagSet
	fmt.Fprintf(w, "Usage: %s %s\n", a.Name, a.Synopsis)
	if a.Description != "" {
		fmt.Fprintln(w)
		for _, l := range wrapText(a.Description, width-2) {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}

	var rows [][2]string
	for _, fl := range fs.flags {
		usage := fl.Usage
		if fl.Default != "" && fl.kind != kindBool {
			usage += " (default " + fl.Default + ")"
		}
		rows = append(rows, [2]string{flagSpelling(fl), usage})
	}
	col := 0
	for _, r := range rows {
		col = max(col, len(r[0]))
	}
	for _, g := range fs.groups {
		for _, s := range g.Items {
			col = max(col, len(s.Name))
		}
	}

	fmt.Fprintln(w, "\nOptions:")
	for _, r := range rows {
		writeRow(w, col, width, r[0], r[1])
	}

	for _, g := range fs.groups {
		forms := fmt.Sprintf("-%[1]s<name>, -%[1]sno-<name>", g.Prefix)
		if g.All {
			forms += fmt.Sprintf(", -%[1]sall, -%[1]sno-all", g.Prefix)
		}
		fmt.Fprintf(w, "\n%s (%s):\n", g.Title, forms)
		for _, s := range g.Items {
			state := "off"
			if s.On {
				state = "on"
			}
			writeRow(w, col, width, s.Name, fmt.Sprintf("[%s] %s", state, s.Usage))
		}
	}
	if a.Repository != "" {
		fmt.Fprintf(w, "\nSee %s\n", a.Repository)
	}
}

func flagSpelling(fl *Flag) string {
	s := "    --" + fl.Name
	if fl.Short != "" {
		s = "-" + fl.Short + ", --" + fl.Name
	}
	if fl.kind != kindBool && fl.Meta != "" {
		s += " <" + fl.Meta + ">"
	}
	return s
}

func writeRow(w io.Writer, col, width int, left, usage string) {
	lines := wrapText(usage, width-col-4)
	if len(lines) == 0 {
		lines = []string{""}
	}
	fmt.Fprintf(w, "  %-*s  %s\n", col, left, lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(w, "  %*s  %s\n", col, "", l)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return max(width, 40)
}

// wrapText splits text into lines of at most width columns; a longer word gets its own line
func wrapText(text string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
