package tools

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	maxExpressionLength = 256
	maxNestingDepth     = 64
	divisionPrecision   = 16
)

var (
	thousandsSep = regexp.MustCompile(`(\d),(\d{3})\b`)
	unsupported  = regexp.MustCompile(`\d\s*[%^]|[%^]\s*\d|\d\s*x\s*\d`)

	pairPhrase = regexp.MustCompile(`\b(sum|product|difference|quotient)\s+of\s+(-?\d+(?:\.\d+)?)\s+and\s+(-?\d+(?:\.\d+)?)`)

	spelledOperators = []struct {
		re *regexp.Regexp
		op string
	}{
		{regexp.MustCompile(`\bmultiplied\s+by\b`), " * "},
		{regexp.MustCompile(`\bdivided\s+by\b`), " / "},
		{regexp.MustCompile(`\btimes\b`), " * "},
		{regexp.MustCompile(`\bplus\b`), " + "},
		{regexp.MustCompile(`\bminus\b`), " - "},
		{regexp.MustCompile(`×`), "*"},
		{regexp.MustCompile(`÷`), "/"},
	}

	pairOperators = map[string]string{
		"sum":        "+",
		"product":    "*",
		"difference": "-",
		"quotient":   "/",
	}
)

// Calculator evaluates bounded arithmetic expressions with exact decimal math.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Kind() Kind { return KindCalculator }

func (c *Calculator) HealthCheck(context.Context) error { return nil }

func (c *Calculator) Invoke(ctx context.Context, in Input) Invocation {
	return run(ctx, KindCalculator, in, func(ctx context.Context) (*Output, int, error) {
		if err := ctx.Err(); err != nil {
			return nil, 1, err
		}
		expr, err := ExtractExpression(in.Query)
		if err != nil {
			return nil, 1, err
		}
		v, err := Evaluate(expr)
		if err != nil {
			return nil, 1, err
		}
		return &Output{Text: v.String(), Expression: expr}, 1, nil
	})
}

// ExtractExpression pulls the arithmetic span out of free text after
// rewriting spelled and unicode operators. It returns "" when no span holds a
// digit. Numbers scattered across the text, or operators the grammar does not
// support, are a parse error rather than a guess at which fragment was meant.
func ExtractExpression(text string) (string, error) {
	s := strings.ToLower(text)
	if m := unsupported.FindString(s); m != "" {
		return "", Errorf(KindCalculator, ErrorKindParse, "unsupported operator in %q", strings.TrimSpace(m))
	}
	for prev := ""; prev != s; {
		prev = s
		s = thousandsSep.ReplaceAllString(s, "${1}${2}")
	}
	s = pairPhrase.ReplaceAllStringFunc(s, func(m string) string {
		parts := pairPhrase.FindStringSubmatch(m)
		return parts[2] + " " + pairOperators[parts[1]] + " " + parts[3]
	})
	for _, so := range spelledOperators {
		s = so.re.ReplaceAllString(s, so.op)
	}

	var spans []string
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		span := strings.Join(strings.Fields(s[start:end]), " ")
		if strings.ContainsAny(span, "0123456789") {
			spans = append(spans, span)
		}
		start = -1
	}
	for i, r := range s {
		if strings.ContainsRune("0123456789.+-*/() ", r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(s))

	switch len(spans) {
	case 0:
		return "", nil
	case 1:
		return spans[0], nil
	default:
		return "", Errorf(KindCalculator, ErrorKindParse, "expected one expression, found %d separate number groups", len(spans))
	}
}

// Evaluate parses and computes expr. The grammar is
//
//	expr   = term { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = ("+" | "-") factor | number | "(" expr ")"
//
// Malformed input yields ErrParse, division by zero yields ErrDomain.
func Evaluate(expr string) (decimal.Decimal, error) {
	if strings.TrimSpace(expr) == "" {
		return decimal.Zero, Errorf(KindCalculator, ErrorKindParse, "no arithmetic expression found")
	}
	if len(expr) > maxExpressionLength {
		return decimal.Zero, Errorf(KindCalculator, ErrorKindParse, "expression longer than %d characters", maxExpressionLength)
	}
	p := &parser{src: expr}
	v, err := p.expr()
	if err != nil {
		return decimal.Zero, err
	}
	p.skipSpaces()
	if p.pos < len(p.src) {
		return decimal.Zero, p.errorf("unexpected %q at position %d", p.src[p.pos], p.pos+1)
	}
	return v, nil
}

type parser struct {
	src   string
	pos   int
	depth int
}

func (p *parser) errorf(format string, args ...any) error {
	return Errorf(KindCalculator, ErrorKindParse, format, args...)
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpaces()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expr() (decimal.Decimal, error) {
	left, err := p.term()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.term()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Add(right)
		case '-':
			p.pos++
			right, err := p.term()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Sub(right)
		default:
			return left, nil
		}
	}
}

func (p *parser) term() (decimal.Decimal, error) {
	left, err := p.factor()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.factor()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Mul(right)
		case '/':
			p.pos++
			right, err := p.factor()
			if err != nil {
				return decimal.Zero, err
			}
			if right.IsZero() {
				return decimal.Zero, Errorf(KindCalculator, ErrorKindDomain, "division by zero")
			}
			left = left.DivRound(right, divisionPrecision)
		default:
			return left, nil
		}
	}
}

func (p *parser) factor() (decimal.Decimal, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxNestingDepth {
		return decimal.Zero, p.errorf("expression nested too deeply")
	}

	switch c := p.peek(); {
	case c == 0:
		return decimal.Zero, p.errorf("unexpected end of expression")
	case c == '-':
		p.pos++
		v, err := p.factor()
		return v.Neg(), err
	case c == '+':
		p.pos++
		return p.factor()
	case c == '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return decimal.Zero, err
		}
		if p.peek() != ')' {
			return decimal.Zero, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		return decimal.Zero, p.errorf("unexpected %q at position %d", c, p.pos+1)
	}
}

func (p *parser) number() (decimal.Decimal, error) {
	start := p.pos
	dot := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '.' {
			if dot {
				break
			}
			dot = true
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	lit := p.src[start:p.pos]
	if lit == "." {
		return decimal.Zero, p.errorf("malformed number at position %d", start+1)
	}
	v, err := decimal.NewFromString(lit)
	if err != nil {
		return decimal.Zero, p.errorf("malformed number %q", lit)
	}
	return v, nil
}
