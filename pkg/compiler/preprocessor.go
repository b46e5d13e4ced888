package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Macro represents a defined macro, either simple or function-like.
type Macro struct {
	Args []string // Empty for simple macros
	Body string
}

// PreprocessOptions configures the built-in preprocessor.
type PreprocessOptions struct {
	IncludeDirs []string // searched for <...> includes, and for "..." after the including file's directory
	Defines     []string // NAME or NAME=VALUE, as given to -D
	Undefines   []string // names given to -U
}

// predefined macros visible to every translation unit.
var predefined = map[string]Macro{
	"__STDC__":         {Body: "1"},
	"__STDC_VERSION__": {Body: "199901L"},
	"__i386__":         {Body: "1"},
}

// Preprocess expands #include, #define/#undef and the conditional directives
// in src, the contents of the file called name. Included text is bracketed by
// `# N "file"` line markers so later diagnostics name the right file.
// Includes already processed elsewhere in the tree are skipped, and include
// cycles are an error.
func Preprocess(name, src string, opts PreprocessOptions) (string, error) {
	defines := make(map[string]Macro, len(predefined))
	for k, v := range predefined {
		defines[k] = v
	}
	for _, d := range opts.Defines {
		k, v, ok := strings.Cut(d, "=")
		if !ok {
			v = "1"
		}
		defines[k] = Macro{Body: v}
	}
	for _, u := range opts.Undefines {
		delete(defines, u)
	}

	pp := &preprocessor{
		opts:      opts,
		defines:   defines,
		processed: make(map[string]bool),
	}
	baseDir := "."
	if name != "" && name != "-" {
		baseDir = filepath.Dir(name)
	}
	return pp.run(name, src, baseDir, make(map[string]bool))
}

type preprocessor struct {
	opts      PreprocessOptions
	defines   map[string]Macro
	processed map[string]bool
}

// condFrame tracks one #if nesting level.
type condFrame struct {
	active    bool // lines in this branch are kept
	taken     bool // some branch of this #if has already been kept
	parentOff bool // an enclosing branch is skipped
}

func (pp *preprocessor) run(name, src, baseDir string, visitedStack map[string]bool) (string, error) {
	lines := strings.Split(src, "\n")
	var result strings.Builder
	var conds []condFrame

	skipping := func() bool {
		return len(conds) > 0 && !conds[len(conds)-1].active
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		lineNo := i + 1
		// Join backslash continuations, keeping the line count stable.
		joined := 0
		for strings.HasSuffix(line, "\\") && i+1 < len(lines) {
			i++
			joined++
			line = strings.TrimSuffix(line, "\\") + lines[i]
		}
		trimmed := strings.TrimSpace(line)

		if !strings.HasPrefix(trimmed, "#") {
			if !skipping() {
				result.WriteString(applyDefines(line, pp.defines))
			}
			result.WriteString(strings.Repeat("\n", joined+1))
			continue
		}

		directive, rest := splitDirective(trimmed)
		errorf := func(format string, args ...any) error {
			return &PosError{File: name, Line: lineNo, Msg: fmt.Sprintf(format, args...)}
		}

		switch directive {
		case "if", "ifdef", "ifndef":
			frame := condFrame{parentOff: skipping()}
			if !frame.parentOff {
				var cond bool
				switch directive {
				case "ifdef":
					_, cond = pp.defines[firstWord(rest)]
				case "ifndef":
					_, cond = pp.defines[firstWord(rest)]
					cond = !cond
				default:
					v, err := pp.evalCondition(rest)
					if err != nil {
						return "", errorf("%v", err)
					}
					cond = v
				}
				frame.active, frame.taken = cond, cond
			}
			conds = append(conds, frame)
		case "elif":
			if len(conds) == 0 {
				return "", errorf("#elif without #if")
			}
			top := &conds[len(conds)-1]
			if top.parentOff || top.taken {
				top.active = false
				break
			}
			v, err := pp.evalCondition(rest)
			if err != nil {
				return "", errorf("%v", err)
			}
			top.active, top.taken = v, v
		case "else":
			if len(conds) == 0 {
				return "", errorf("#else without #if")
			}
			top := &conds[len(conds)-1]
			top.active = !top.parentOff && !top.taken
			top.taken = true
		case "endif":
			if len(conds) == 0 {
				return "", errorf("#endif without #if")
			}
			conds = conds[:len(conds)-1]
		default:
			if skipping() {
				break
			}
			out, err := pp.directive(directive, rest, line, baseDir, visitedStack)
			if err != nil {
				return "", errorf("%v", err)
			}
			if out != "" {
				result.WriteString(out)
				fmt.Fprintf(&result, "# %d %q\n", lineNo+joined+1, name)
				continue
			}
		}
		// Replace with empty lines to preserve the line count.
		result.WriteString(strings.Repeat("\n", joined+1))
	}
	if len(conds) > 0 {
		return "", &PosError{File: name, Line: len(lines), Msg: "unterminated conditional directive"}
	}
	return result.String(), nil
}

func splitDirective(trimmed string) (string, string) {
	body := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
	end := 0
	for end < len(body) && isIdentPart(rune(body[end])) {
		end++
	}
	return body[:end], strings.TrimSpace(body[end:])
}

func firstWord(s string) string {
	end := 0
	for end < len(s) && isIdentPart(rune(s[end])) {
		end++
	}
	return s[:end]
}

// directive handles the unconditional directives. It returns the text that
// replaces an #include line, or "" otherwise.
func (pp *preprocessor) directive(directive, rest, line, baseDir string, visitedStack map[string]bool) (string, error) {
	switch directive {
	case "define":
		// Expected format: #define NAME VALUE or #define NAME(ARGS) VALUE
		if rest == "" {
			return "", fmt.Errorf("no macro name given in #define directive")
		}
		name := firstWord(rest)
		rest = rest[len(name):]

		var args []string
		// Function-like macros have '(' immediately after the name.
		if len(rest) > 0 && rest[0] == '(' {
			closeParen := strings.Index(rest, ")")
			if closeParen == -1 {
				return "", fmt.Errorf("unterminated macro parameter list")
			}
			argStr := rest[1:closeParen]
			if strings.TrimSpace(argStr) != "" {
				for _, arg := range strings.Split(argStr, ",") {
					args = append(args, strings.TrimSpace(arg))
				}
			}
			rest = rest[closeParen+1:]
		}

		value := strings.TrimSpace(rest)
		// Simple macro bodies are expanded eagerly; function-like bodies are
		// expanded at the call site where arguments shadow global defines.
		if len(args) == 0 {
			value = applyDefines(value, pp.defines)
		}
		pp.defines[name] = Macro{Args: args, Body: value}
	case "undef":
		delete(pp.defines, firstWord(rest))
	case "include":
		return pp.include(rest, line, baseDir, visitedStack)
	case "error":
		return "", fmt.Errorf("#error %s", rest)
	case "pragma", "ident", "warning", "line", "":
	default:
		return "", fmt.Errorf("invalid preprocessing directive #%s", directive)
	}
	return "", nil
}

func (pp *preprocessor) include(rest, line, baseDir string, visitedStack map[string]bool) (string, error) {
	var filename string
	var dirs []string
	switch {
	case strings.HasPrefix(rest, "\""):
		parts := strings.SplitN(rest, "\"", 3)
		if len(parts) < 3 {
			return "", fmt.Errorf("invalid include directive: %s", line)
		}
		filename = parts[1]
		dirs = append([]string{baseDir}, pp.opts.IncludeDirs...)
	case strings.HasPrefix(rest, "<"):
		end := strings.Index(rest, ">")
		if end == -1 {
			return "", fmt.Errorf("invalid include directive: %s", line)
		}
		filename = rest[1:end]
		dirs = pp.opts.IncludeDirs
	default:
		return "", fmt.Errorf("invalid include directive: %s", line)
	}

	fullPath := ""
	for _, dir := range dirs {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			fullPath = candidate
			break
		}
	}
	if fullPath == "" {
		return "", fmt.Errorf("%s: no such file in include path", filename)
	}

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	// Check for cycles in the current stack
	if visitedStack[absPath] {
		return "", fmt.Errorf("circular include detected: %s", filename)
	}

	// A file already expanded in another branch of the include tree is
	// skipped; the definitions it made are still in effect.
	if pp.processed[absPath] {
		return "\n", nil
	}
	pp.processed[absPath] = true

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to read included file %s (path: %s): %v", filename, fullPath, err)
	}

	// Copy the stack so diamond dependencies are allowed.
	newStack := make(map[string]bool, len(visitedStack)+1)
	for k, v := range visitedStack {
		newStack[k] = v
	}
	newStack[absPath] = true

	body, err := pp.run(fullPath, string(content), filepath.Dir(fullPath), newStack)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("# 1 %q\n%s\n", fullPath, body), nil
}

// evalCondition evaluates an #if expression: integer literals, defined(X),
// the unary operators ! - ~ and the binary arithmetic, comparison and
// logical operators. Identifiers that survive macro expansion are 0.
func (pp *preprocessor) evalCondition(expr string) (bool, error) {
	expr = replaceDefined(expr, pp.defines)
	expr = applyDefines(expr, pp.defines)
	tokens, err := Lex(expr)
	if err != nil {
		return false, err
	}
	ev := &condEval{tokens: tokens}
	v, err := ev.binary(0)
	if err != nil {
		return false, err
	}
	if ev.peek().Type != EOF {
		return false, fmt.Errorf("missing binary operator before token %q", ev.peek().Lexeme)
	}
	return v != 0, nil
}

// replaceDefined rewrites `defined NAME` and `defined(NAME)` to 1 or 0.
func replaceDefined(expr string, defines map[string]Macro) string {
	var sb strings.Builder
	for {
		idx := strings.Index(expr, "defined")
		if idx == -1 || (idx > 0 && isIdentPart(rune(expr[idx-1]))) {
			if idx == -1 {
				sb.WriteString(expr)
				return sb.String()
			}
			sb.WriteString(expr[:idx+len("defined")])
			expr = expr[idx+len("defined"):]
			continue
		}
		sb.WriteString(expr[:idx])
		rest := strings.TrimSpace(expr[idx+len("defined"):])
		paren := strings.HasPrefix(rest, "(")
		if paren {
			rest = strings.TrimSpace(rest[1:])
		}
		name := firstWord(rest)
		rest = rest[len(name):]
		if paren {
			rest = strings.TrimPrefix(strings.TrimSpace(rest), ")")
		}
		if _, ok := defines[name]; ok {
			sb.WriteString(" 1 ")
		} else {
			sb.WriteString(" 0 ")
		}
		expr = rest
	}
}

type condEval struct {
	tokens []Token
	pos    int
}

func (e *condEval) peek() Token {
	if e.pos >= len(e.tokens) {
		return Token{Type: EOF}
	}
	return e.tokens[e.pos]
}

var condPrecedence = map[TokenType]int{
	OR_LOGICAL: 1, AND_LOGICAL: 2, PIPE: 3, CARET: 4, AND: 5,
	EQUALS: 6, NOT_EQ: 6,
	LESS: 7, GREATER: 7, LESS_EQ: 7, GREATER_EQ: 7,
	SHL_OP: 8, SHR_OP: 8,
	PLUS: 9, MINUS: 9,
	STAR: 10, SLASH: 10, PERCENT: 10,
}

// binary parses operators of at least minPrec by precedence climbing.
func (e *condEval) binary(minPrec int) (int64, error) {
	left, err := e.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := e.peek().Type
		prec, ok := condPrecedence[op]
		if !ok || prec < minPrec {
			return left, nil
		}
		e.pos++
		right, err := e.binary(prec + 1)
		if err != nil {
			return 0, err
		}
		if left, err = foldBinary(op, left, right); err != nil {
			return 0, err
		}
	}
}

func (e *condEval) unary() (int64, error) {
	tok := e.peek()
	e.pos++
	switch tok.Type {
	case NOT:
		v, err := e.unary()
		return boolInt(v == 0), err
	case MINUS:
		v, err := e.unary()
		return -v, err
	case TILDE:
		v, err := e.unary()
		return ^v, err
	case PLUS:
		return e.unary()
	case LPAREN:
		v, err := e.binary(0)
		if err != nil {
			return 0, err
		}
		if e.peek().Type != RPAREN {
			return 0, fmt.Errorf("missing ')' in expression")
		}
		e.pos++
		return v, nil
	case INTEGER:
		v, _, err := parseIntLiteral(tok.Lexeme)
		return int64(v), err
	case IDENTIFIER:
		return 0, nil
	}
	return 0, fmt.Errorf("token %q is not valid in preprocessor expressions", tok.Lexeme)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// foldBinary applies a binary operator to two constants.
func foldBinary(op TokenType, l, r int64) (int64, error) {
	switch op {
	case PLUS:
		return l + r, nil
	case MINUS:
		return l - r, nil
	case STAR:
		return l * r, nil
	case SLASH, PERCENT:
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		if op == SLASH {
			return l / r, nil
		}
		return l % r, nil
	case SHL_OP:
		return l << uint64(r), nil
	case SHR_OP:
		return l >> uint64(r), nil
	case LESS:
		return boolInt(l < r), nil
	case GREATER:
		return boolInt(l > r), nil
	case LESS_EQ:
		return boolInt(l <= r), nil
	case GREATER_EQ:
		return boolInt(l >= r), nil
	case EQUALS:
		return boolInt(l == r), nil
	case NOT_EQ:
		return boolInt(l != r), nil
	case AND:
		return l & r, nil
	case PIPE:
		return l | r, nil
	case CARET:
		return l ^ r, nil
	case AND_LOGICAL:
		return boolInt(l != 0 && r != 0), nil
	case OR_LOGICAL:
		return boolInt(l != 0 || r != 0), nil
	}
	return 0, fmt.Errorf("operator %s is not a constant operator", op)
}

// parseIntLiteral decodes an integer lexeme and reports its suffix flags.
func parseIntLiteral(lexeme string) (uint64, intSuffix, error) {
	var suf intSuffix
	end := len(lexeme)
	for end > 0 {
		c := lexeme[end-1]
		if c == 'u' || c == 'U' {
			suf.unsigned = true
		} else if c == 'l' || c == 'L' {
			suf.longs++
		} else {
			break
		}
		end--
	}
	digits := lexeme[:end]
	base := 10
	switch {
	case strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X"):
		base, digits = 16, digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		base, digits = 8, digits[1:]
	}
	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return 0, suf, fmt.Errorf("invalid integer literal %q", lexeme)
	}
	return v, suf, nil
}

type intSuffix struct {
	unsigned bool
	longs    int
}

// applyDefines replaces occurrences of keys in defines map with their values in the input string.
// It ensures that replacements only happen on word boundaries and not inside string/char literals.
func applyDefines(input string, defines map[string]Macro) string {
	return expandDefines(input, defines, nil)
}

// expandDefines is applyDefines with the set of macros currently being
// expanded, which are not expanded again.
func expandDefines(input string, defines map[string]Macro, active map[string]bool) string {
	if len(defines) == 0 {
		return input
	}

	var sb strings.Builder
	n := len(input)
	i := 0

	for i < n {
		if input[i] == '"' || input[i] == '\'' {
			// Copy string and char literals verbatim.
			quote := input[i]
			sb.WriteByte(input[i])
			i++
			for i < n {
				char := input[i]
				sb.WriteByte(char)
				i++
				if char == '\\' {
					if i < n {
						sb.WriteByte(input[i])
						i++
					}
				} else if char == quote {
					break
				}
			}
			continue
		}
		r := rune(input[i])
		if isDigit(r) {
			// Numbers such as 1L or 0x1fUL are not identifiers.
			for i < n && isIdentPart(rune(input[i])) {
				sb.WriteByte(input[i])
				i++
			}
			continue
		}
		if !isIdentStart(r) {
			sb.WriteByte(input[i])
			i++
			continue
		}
		start := i
		for i < n && isIdentPart(rune(input[i])) {
			i++
		}
		word := input[start:i]
		macro, ok := defines[word]
		if !ok || active[word] {
			sb.WriteString(word)
			continue
		}
		nested := make(map[string]bool, len(active)+1)
		for k := range active {
			nested[k] = true
		}
		nested[word] = true

		if len(macro.Args) == 0 {
			sb.WriteString(expandDefines(macro.Body, defines, nested))
			continue
		}

		// Function-like macros expand only when followed by '('.
		j := i
		for j < n && (input[j] == ' ' || input[j] == '\t') {
			j++
		}
		if j >= n || input[j] != '(' {
			sb.WriteString(word)
			continue
		}
		j++ // consume '('
		var args []string
		var currentArg strings.Builder
		parenDepth := 1
		for j < n && parenDepth > 0 {
			switch {
			case input[j] == '(':
				parenDepth++
				currentArg.WriteByte(input[j])
			case input[j] == ')':
				parenDepth--
				if parenDepth > 0 {
					currentArg.WriteByte(input[j])
				}
			case input[j] == ',' && parenDepth == 1:
				args = append(args, strings.TrimSpace(currentArg.String()))
				currentArg.Reset()
			default:
				currentArg.WriteByte(input[j])
			}
			j++
		}
		if parenDepth != 0 {
			sb.WriteString(word)
			continue
		}
		args = append(args, strings.TrimSpace(currentArg.String()))
		if len(args) != len(macro.Args) {
			sb.WriteString(word)
			continue
		}
		// Substitute all arguments in one pass so that an argument's text is
		// never re-substituted by a later parameter name.
		argMap := make(map[string]Macro, len(macro.Args))
		for k, argName := range macro.Args {
			argMap[argName] = Macro{Body: args[k]}
		}
		body := expandDefines(macro.Body, argMap, nil)
		sb.WriteString(expandDefines(body, defines, nested))
		i = j
	}
	return sb.String()
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}
