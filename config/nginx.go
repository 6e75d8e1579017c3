package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SyntaxError reports a problem in an nginx-style config file.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokSemi
	tokOpen
	tokClose
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	line int
}

type lexer struct {
	src  []byte
	pos  int
	line int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == ';':
			l.pos++
			return token{kind: tokSemi, text: ";", line: l.line}, nil
		case c == '{':
			l.pos++
			return token{kind: tokOpen, text: "{", line: l.line}, nil
		case c == '}':
			l.pos++
			return token{kind: tokClose, text: "}", line: l.line}, nil
		case c == '"' || c == '\'':
			return l.quoted(c)
		default:
			return l.word(), nil
		}
	}
	return token{kind: tokEOF, line: l.line}, nil
}

func (l *lexer) quoted(q byte) (token, error) {
	start := l.line
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case q:
			return token{kind: tokWord, text: b.String(), line: start}, nil
		case '\\':
			if l.pos < len(l.src) {
				b.WriteByte(l.src[l.pos])
				l.pos++
			}
			continue
		case '\n':
			l.line++
		}
		b.WriteByte(c)
	}
	return token{}, &SyntaxError{Line: start, Msg: "unterminated quoted string"}
}

func (l *lexer) word() token {
	start := l.pos
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\r', '\n', ';', '{', '}', '#', '"', '\'':
			return token{kind: tokWord, text: string(l.src[start:l.pos]), line: l.line}
		}
		l.pos++
	}
	return token{kind: tokWord, text: string(l.src[start:l.pos]), line: l.line}
}

// statement is one directive: its words and, for block directives, the
// statements inside the braces.
type statement struct {
	line   int
	words  []string
	block  []*statement
	simple bool // terminated by ';' rather than a block
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

// parseBlock reads statements until '}' (nested) or EOF (top level).
func (p *parser) parseBlock(nested bool) ([]*statement, error) {
	var out []*statement
	for {
		switch p.tok.kind {
		case tokEOF:
			if nested {
				return nil, &SyntaxError{Line: p.tok.line, Msg: "unexpected end of file, expecting \"}\""}
			}
			return out, nil
		case tokClose:
			if !nested {
				return nil, &SyntaxError{Line: p.tok.line, Msg: "unexpected \"}\""}
			}
			return out, p.advance()
		case tokSemi, tokOpen:
			return nil, &SyntaxError{Line: p.tok.line, Msg: fmt.Sprintf("unexpected %q", p.tok.text)}
		}

		st := &statement{line: p.tok.line}
		for p.tok.kind == tokWord {
			st.words = append(st.words, p.tok.text)
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		switch p.tok.kind {
		case tokSemi:
			st.simple = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		case tokOpen:
			if err := p.advance(); err != nil {
				return nil, err
			}
			block, err := p.parseBlock(true)
			if err != nil {
				return nil, err
			}
			st.block = block
		default:
			return nil, &SyntaxError{Line: st.line, Msg: fmt.Sprintf("directive %q is not terminated by \";\"", st.words[0])}
		}
		out = append(out, st)
	}
}

// ParseNginx decodes the nginx-style grammar:
//
//	port 8080;
//	workers 16;
//	location /static StaticHandler {
//	    root ./files;
//	}
//	server {
//	    port 8081;
//	    location / NotFoundHandler {}
//	}
//
// Directives outside any server block describe one implicit server.
func ParseNginx(data []byte) (*Config, error) {
	p := &parser{lex: &lexer{src: data, line: 1}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	stmts, err := p.parseBlock(false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	var top []*statement
	for _, st := range stmts {
		if st.words[0] == "server" {
			if st.simple || len(st.words) != 1 {
				return nil, &SyntaxError{Line: st.line, Msg: "server takes no arguments and needs a block"}
			}
			srv, err := parseServer(st.block)
			if err != nil {
				return nil, err
			}
			cfg.Servers = append(cfg.Servers, srv)
			continue
		}
		top = append(top, st)
	}
	if len(top) > 0 {
		srv, err := parseServer(top)
		if err != nil {
			return nil, err
		}
		cfg.Servers = append([]Server{srv}, cfg.Servers...)
	}
	return cfg, nil
}

func parseServer(stmts []*statement) (Server, error) {
	var s Server
	for _, st := range stmts {
		name := st.words[0]
		if name == "location" {
			r, err := parseLocation(st)
			if err != nil {
				return Server{}, err
			}
			s.Routes = append(s.Routes, r)
			continue
		}

		if !st.simple || len(st.words) != 2 {
			return Server{}, &SyntaxError{Line: st.line, Msg: fmt.Sprintf("%s takes exactly one argument", name)}
		}
		arg := st.words[1]
		var err error
		switch name {
		case "port":
			s.Port, err = parseInt(arg)
		case "workers", "threads":
			s.Workers, err = parseInt(arg)
		case "queue_size":
			var q int
			q, err = parseInt(arg)
			s.QueueSize = &q
		case "read_timeout":
			s.ReadTimeout, err = parseDuration(arg)
		case "write_timeout":
			s.WriteTimeout, err = parseDuration(arg)
		case "shutdown_grace":
			s.ShutdownGrace, err = parseDuration(arg)
		case "max_header_bytes":
			s.MaxHeaderBytes, err = parseInt(arg)
		case "max_body_bytes":
			var n int
			n, err = parseInt(arg)
			s.MaxBodyBytes = int64(n)
		default:
			return Server{}, &SyntaxError{Line: st.line, Msg: fmt.Sprintf("unknown directive %q", name)}
		}
		if err != nil {
			return Server{}, &SyntaxError{Line: st.line, Msg: fmt.Sprintf("%s: %v", name, err)}
		}
	}
	return s, nil
}

func parseLocation(st *statement) (Route, error) {
	if len(st.words) != 3 {
		return Route{}, &SyntaxError{Line: st.line, Msg: "location needs a prefix and a handler"}
	}
	if st.simple {
		return Route{}, &SyntaxError{Line: st.line, Msg: "location needs a block"}
	}
	r := Route{Prefix: st.words[1], Handler: st.words[2]}
	for _, p := range st.block {
		if !p.simple || len(p.words) != 2 {
			return Route{}, &SyntaxError{Line: p.line, Msg: fmt.Sprintf("location %s: parameter %q needs exactly one value", r.Prefix, p.words[0])}
		}
		if r.Params == nil {
			r.Params = make(map[string]string)
		}
		if _, dup := r.Params[p.words[0]]; dup {
			return Route{}, &SyntaxError{Line: p.line, Msg: fmt.Sprintf("location %s: duplicate parameter %q", r.Prefix, p.words[0])}
		}
		r.Params[p.words[0]] = p.words[1]
	}
	return r, nil
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

// parseDuration accepts Go durations ("1m30s") and bare seconds ("30").
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
