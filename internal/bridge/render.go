package bridge

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/holiman/uint256"

	"github.com/roach88/ledgerbridge/internal/params"
)

// functionPath matches a dotted identifier path such as "bladeSdk.getBalance".
var functionPath = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// RenderCall renders function(args...) as one script expression.
// It is the only place host values become script source.
func RenderCall(function string, args ...any) (string, error) {
	if !functionPath.MatchString(function) {
		return "", encodingError(fmt.Sprintf("invalid function path %q", function), nil)
	}
	rendered, err := renderArgs(args)
	if err != nil {
		return "", err
	}
	return joinCall(function, rendered), nil
}

func joinCall(function string, rendered []string) string {
	return function + "(" + strings.Join(rendered, ", ") + ")"
}

func renderArgs(args []any) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, err := RenderValue(a)
		if err != nil {
			return nil, encodingError(fmt.Sprintf("argument %d", i), err)
		}
		out[i] = s
	}
	return out, nil
}

// RenderValue renders one host value as a script literal.
//
// Strings become single-quoted literals. Numbers and bools are unquoted.
// *big.Int and *uint256.Int are quoted decimal strings because script
// numbers cannot hold them exactly. A params.List becomes its quoted
// WireForm. nil is null.
func RenderValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		if !utf8.ValidString(x) {
			return "", encodingError("invalid UTF-8", nil)
		}
		return Quote(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return renderFloat(float64(x))
	case float64:
		return renderFloat(x)
	case *big.Int:
		if x == nil {
			return "null", nil
		}
		return Quote(x.String()), nil
	case *uint256.Int:
		if x == nil {
			return "null", nil
		}
		return Quote(x.Dec()), nil
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			if !utf8.ValidString(s) {
				return "", encodingError("invalid UTF-8", nil)
			}
			parts[i] = Quote(s)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case params.List:
		wire, err := params.Encode(x)
		if err != nil {
			return "", err
		}
		return Quote(wire), nil
	}
	return "", fmt.Errorf("unsupported argument type %T", v)
}

func renderFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number %v", f)
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

// Quote renders s as a single-quoted script string literal.
//
// Backslash, quote, CR, LF and the line terminators U+2028/U+2029 are
// escaped, as are all other control characters, so the literal always
// stays on one line and can never close early.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\u2028', '\u2029':
			fmt.Fprintf(&sb, `\u%04x`, r)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, `\u%04x`, r)
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// Unquote parses a literal produced by Quote back into its string.
func Unquote(lit string) (string, error) {
	if len(lit) < 2 || lit[0] != '\'' || lit[len(lit)-1] != '\'' {
		return "", fmt.Errorf("not a single-quoted literal: %q", lit)
	}
	body := lit[1 : len(lit)-1]

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\'' {
			return "", fmt.Errorf("unescaped quote at offset %d", i+1)
		}
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("dangling escape")
		}
		switch body[i] {
		case '\\', '\'':
			sb.WriteByte(body[i])
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 'u':
			if i+4 >= len(body) {
				return "", fmt.Errorf("short \\u escape at offset %d", i)
			}
			n, err := strconv.ParseUint(body[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad \\u escape at offset %d: %w", i, err)
			}
			sb.WriteRune(rune(n))
			i += 4
		default:
			return "", fmt.Errorf("unknown escape \\%c", body[i])
		}
	}
	return sb.String(), nil
}
