package host

import (
	"fmt"
	"strconv"
	"strings"
)

// Evaluator runs small path expressions against the object space:
// literals, bound names, application roots, and chains of property
// access, method calls, and indexing.
//
//	archive.records.whose(kind: "note").at(0).name
type Evaluator struct {
	space *Space
}

// NewEvaluator creates an evaluator over a space.
func NewEvaluator(space *Space) *Evaluator {
	return &Evaluator{space: space}
}

// Eval evaluates a single expression. Names resolve against bindings
// first, then against defined application names.
func (e *Evaluator) Eval(source string, bindings map[string]Value) (Value, error) {
	toks, err := lex(source)
	if err != nil {
		return Nil, err
	}
	p := &parser{toks: toks, eval: e, bindings: bindings}
	v, err := p.expr()
	if err != nil {
		return Nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return Nil, fmt.Errorf("unexpected %q at offset %d", tok.text, tok.pos)
	}
	return v, nil
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(source string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(source) {
		c := source[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			start := i
			for i < len(source) && isIdentPart(source[i]) {
				i++
			}
			toks = append(toks, token{tokenIdent, source[start:i], start})
		case c >= '0' && c <= '9':
			start := i
			for i < len(source) && isNumberPart(source[i]) {
				i++
			}
			toks = append(toks, token{tokenNumber, source[start:i], start})
		case c == '\'' || c == '"':
			text, next, err := lexString(source, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokenString, text, i})
			i = next
		case strings.ContainsRune(".,()[]:-", rune(c)):
			toks = append(toks, token{tokenPunct, string(c), i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	toks = append(toks, token{tokenEOF, "", len(source)})
	return toks, nil
}

func lexString(source string, start int) (string, int, error) {
	quote := source[start]
	var b strings.Builder
	i := start + 1
	for i < len(source) {
		c := source[i]
		switch c {
		case quote:
			return b.String(), i + 1, nil
		case '\\':
			if i+1 >= len(source) {
				return "", 0, fmt.Errorf("unterminated escape at offset %d", i)
			}
			switch source[i+1] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(source[i+1])
			}
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, fmt.Errorf("unterminated string at offset %d", start)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isNumberPart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '+'
}

type parser struct {
	toks     []token
	pos      int
	eval     *Evaluator
	bindings map[string]Value
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) accept(punct string) bool {
	if tok := p.peek(); tok.kind == tokenPunct && tok.text == punct {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(punct string) error {
	if !p.accept(punct) {
		tok := p.peek()
		return fmt.Errorf("expected %q, got %q at offset %d", punct, tok.text, tok.pos)
	}
	return nil
}

func (p *parser) expr() (Value, error) {
	v, err := p.primary()
	if err != nil {
		return Nil, err
	}
	for {
		switch {
		case p.accept("."):
			tok := p.next()
			if tok.kind != tokenIdent {
				return Nil, fmt.Errorf("expected name after '.' at offset %d", tok.pos)
			}
			if p.accept("(") {
				v, err = p.call(v, tok.text)
			} else {
				v, err = p.member(v, tok.text)
			}
		case p.accept("["):
			var idx Value
			idx, err = p.expr()
			if err != nil {
				return Nil, err
			}
			if err = p.expect("]"); err != nil {
				return Nil, err
			}
			v, err = p.index(v, idx)
		case p.accept("("):
			if v.Kind() != KindFunc {
				return Nil, fmt.Errorf("%s is not callable", v.Kind())
			}
			var args []Value
			var kwargs map[string]Value
			args, kwargs, err = p.args()
			if err != nil {
				return Nil, err
			}
			v, err = v.Func().Call(args, kwargs)
		default:
			return v, nil
		}
		if err != nil {
			return Nil, err
		}
	}
}

func (p *parser) primary() (Value, error) {
	tok := p.next()
	switch tok.kind {
	case tokenNumber:
		return parseNumber(tok)
	case tokenString:
		return StringValue(tok.text), nil
	case tokenIdent:
		switch tok.text {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		case "nil", "null":
			return Nil, nil
		}
		return p.resolve(tok)
	case tokenPunct:
		switch tok.text {
		case "(":
			v, err := p.expr()
			if err != nil {
				return Nil, err
			}
			return v, p.expect(")")
		case "-":
			num := p.next()
			if num.kind != tokenNumber {
				return Nil, fmt.Errorf("expected number after '-' at offset %d", num.pos)
			}
			v, err := parseNumber(num)
			if err != nil {
				return Nil, err
			}
			if v.Kind() == KindInt {
				return IntValue(-v.Int()), nil
			}
			return FloatValue(-v.Float()), nil
		}
	}
	return Nil, fmt.Errorf("unexpected %q at offset %d", tok.text, tok.pos)
}

func parseNumber(tok token) (Value, error) {
	if !strings.ContainsAny(tok.text, ".eE") {
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return Nil, fmt.Errorf("bad number %q at offset %d", tok.text, tok.pos)
		}
		return IntValue(n), nil
	}
	f, err := strconv.ParseFloat(tok.text, 64)
	if err != nil {
		return Nil, fmt.Errorf("bad number %q at offset %d", tok.text, tok.pos)
	}
	return FloatValue(f), nil
}

func (p *parser) resolve(tok token) (Value, error) {
	if p.bindings != nil {
		if v, ok := p.bindings[tok.text]; ok {
			return v, nil
		}
	}
	if app, err := p.eval.space.Application(tok.text); err == nil {
		return ObjectValue(app), nil
	}
	return Nil, fmt.Errorf("unknown name %q at offset %d", tok.text, tok.pos)
}

// member resolves a '.' step: object properties first, then methods as
// callable values, then record fields.
func (p *parser) member(v Value, name string) (Value, error) {
	switch v.Kind() {
	case KindObject:
		obj := v.Object()
		if obj.HasProperty(name) {
			return obj.Property(name), nil
		}
		if fn, ok := obj.Method(name); ok {
			return FuncValue(fn), nil
		}
		return Nil, nil
	case KindRecord:
		if f, ok := v.Record()[name]; ok {
			return f, nil
		}
		return Nil, nil
	default:
		return Nil, fmt.Errorf("cannot access %q on %s", name, v.Kind())
	}
}

// call resolves a '.' step followed by an argument list. The opening
// paren is already consumed.
func (p *parser) call(v Value, name string) (Value, error) {
	args, kwargs, err := p.args()
	if err != nil {
		return Nil, err
	}
	if v.Kind() != KindObject {
		return Nil, fmt.Errorf("cannot call %q on %s", name, v.Kind())
	}
	fn, ok := v.Object().Method(name)
	if !ok {
		return Nil, fmt.Errorf("unknown method %q on %s", name, v.Object().describe())
	}
	return fn.Call(args, kwargs)
}

// args parses a possibly empty argument list up to the closing paren.
// A `name: value` pair becomes a keyword argument.
func (p *parser) args() ([]Value, map[string]Value, error) {
	var args []Value
	var kwargs map[string]Value
	if p.accept(")") {
		return args, kwargs, nil
	}
	for {
		if tok := p.peek(); tok.kind == tokenIdent && p.peekAhead(1, ":") {
			p.next()
			p.next()
			v, err := p.expr()
			if err != nil {
				return nil, nil, err
			}
			if kwargs == nil {
				kwargs = make(map[string]Value)
			}
			kwargs[tok.text] = v
		} else {
			v, err := p.expr()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, v)
		}
		if p.accept(")") {
			return args, kwargs, nil
		}
		if err := p.expect(","); err != nil {
			return nil, nil, err
		}
	}
}

func (p *parser) peekAhead(n int, punct string) bool {
	if p.pos+n >= len(p.toks) {
		return false
	}
	tok := p.toks[p.pos+n]
	return tok.kind == tokenPunct && tok.text == punct
}

func (p *parser) index(v, idx Value) (Value, error) {
	switch v.Kind() {
	case KindList:
		n, ok := idx.Number()
		if !ok || n != float64(int64(n)) {
			return Nil, fmt.Errorf("list index must be an integer, got %s", idx.Kind())
		}
		items := v.List()
		i := int(n)
		if i < 0 || i >= len(items) {
			return Nil, fmt.Errorf("index %d out of range (length %d)", i, len(items))
		}
		return items[i], nil
	case KindRecord:
		if idx.Kind() != KindString {
			return Nil, fmt.Errorf("record index must be a string, got %s", idx.Kind())
		}
		if f, ok := v.Record()[idx.Str()]; ok {
			return f, nil
		}
		return Nil, nil
	case KindObject:
		c := v.Object().Container()
		if c == nil {
			return Nil, fmt.Errorf("%s is not indexable", v.Object().describe())
		}
		n, ok := idx.Number()
		if !ok || n != float64(int64(n)) {
			return Nil, fmt.Errorf("index must be an integer, got %s", idx.Kind())
		}
		return c.At(int(n))
	default:
		return Nil, fmt.Errorf("%s is not indexable", v.Kind())
	}
}
