package launcher

// Control tokens recognized on a command line.
const (
	TokenBackground = "&"
	TokenRedirOut   = ">"
	TokenRedirIn    = "<"
)

// Command is a command line with its control tokens interpreted.
type Command struct {
	// Args is the program name and its arguments, control tokens removed.
	Args []string
	// Background is set when the line carried "&".
	Background bool
	// OutputFile is the target of ">", empty if none.
	OutputFile string
	// InputFile is the source of "<", empty if none.
	InputFile string
}

// ParseCommand interprets control tokens in argv, always in the same order:
// the background marker first, then output redirection, then input
// redirection. Each may appear at most once, anywhere on the line. argv is
// not modified.
func ParseCommand(argv []string) (*Command, error) {
	cmd := &Command{}

	args, found, err := stripFlag(argv, TokenBackground)
	if err != nil {
		return nil, err
	}
	cmd.Background = found

	if args, cmd.OutputFile, err = stripRedirect(args, TokenRedirOut); err != nil {
		return nil, err
	}
	if args, cmd.InputFile, err = stripRedirect(args, TokenRedirIn); err != nil {
		return nil, err
	}

	if len(args) == 0 {
		return nil, syntaxErrorf("missing command")
	}
	cmd.Args = args
	return cmd, nil
}

// Argv renders the command back into a line ParseCommand accepts, with the
// program name first.
func (c *Command) Argv() []string {
	argv := append([]string(nil), c.Args...)
	if c.OutputFile != "" {
		argv = append(argv, TokenRedirOut, c.OutputFile)
	}
	if c.InputFile != "" {
		argv = append(argv, TokenRedirIn, c.InputFile)
	}
	if c.Background {
		argv = append(argv, TokenBackground)
	}
	return argv
}

func isControlToken(tok string) bool {
	switch tok {
	case TokenBackground, TokenRedirOut, TokenRedirIn:
		return true
	default:
		return false
	}
}

// stripFlag returns a copy of args without tok and whether it was present.
func stripFlag(args []string, tok string) ([]string, bool, error) {
	out := make([]string, 0, len(args))
	found := false
	for _, arg := range args {
		if arg != tok {
			out = append(out, arg)
			continue
		}
		if found {
			return nil, false, syntaxErrorf("unexpected token %q", tok)
		}
		found = true
	}
	return out, found, nil
}

// stripRedirect returns a copy of args without op and its operand.
func stripRedirect(args []string, op string) ([]string, string, error) {
	out := make([]string, 0, len(args))
	target := ""
	found := false
	for i := 0; i < len(args); i++ {
		if args[i] != op {
			out = append(out, args[i])
			continue
		}
		if found {
			return nil, "", syntaxErrorf("only one %q redirection is supported", op)
		}
		if i+1 >= len(args) || isControlToken(args[i+1]) || args[i+1] == "" {
			return nil, "", syntaxErrorf("missing file name after %q", op)
		}
		found = true
		target = args[i+1]
		i++
	}
	return out, target, nil
}
