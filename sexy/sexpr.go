// Package sexy reads and prints the S-expression documents used to hand
// typed ASTs to the backend and to write test expectations.
//
//	(binary ^{type: integer} "+" (ident "x") 2)
//
// Atoms are symbols, strings, integers and the ellipsis "..." (a wildcard in
// test patterns). Lists may carry metadata maps written ^{key: value, ...};
// several metadata maps in one list are merged, later keys winning.
package sexy

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NodeType represents the type of a Node
type NodeType int

const (
	NodeSymbol NodeType = iota
	NodeString
	NodeInteger
	NodeEllipsis
	NodeList
	NodeMap
)

func (t NodeType) String() string {
	switch t {
	case NodeSymbol:
		return "symbol"
	case NodeString:
		return "string"
	case NodeInteger:
		return "integer"
	case NodeEllipsis:
		return "ellipsis"
	case NodeList:
		return "list"
	case NodeMap:
		return "map"
	default:
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
}

// Node represents any Sexy datum
type Node struct {
	Type NodeType

	Text string // NodeSymbol, NodeString, NodeInteger

	Items []*Node  // NodeList, NodeMap
	Keys  []string // NodeMap - parallel to Items

	// Metadata for NodeList - stored as parallel slices like maps
	MetaKeys  []string
	MetaItems []*Node
}

func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	switch n.Type {
	case NodeSymbol, NodeInteger:
		sb.WriteString(n.Text)
	case NodeString:
		sb.WriteByte('"')
		escaped := strings.ReplaceAll(n.Text, "\\", "\\\\")
		sb.WriteString(strings.ReplaceAll(escaped, "\"", "\\\""))
		sb.WriteByte('"')
	case NodeEllipsis:
		sb.WriteString("...")
	case NodeList:
		sb.WriteByte('(')
		sep := ""
		if len(n.MetaKeys) > 0 {
			sb.WriteByte('^')
			writeMap(sb, n.MetaKeys, n.MetaItems)
			sep = " "
		}
		for _, item := range n.Items {
			sb.WriteString(sep)
			item.write(sb)
			sep = " "
		}
		sb.WriteByte(')')
	case NodeMap:
		writeMap(sb, n.Keys, n.Items)
	default:
		fmt.Fprintf(sb, "UNKNOWN_NODE_TYPE_%d", n.Type)
	}
}

func writeMap(sb *strings.Builder, keys []string, items []*Node) {
	sb.WriteByte('{')
	for i, key := range keys {
		if i >= len(items) {
			break
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(key)
		sb.WriteString(": ")
		items[i].write(sb)
	}
	sb.WriteByte('}')
}

// Helper constructors for common node types
func NewSymbol(name string) *Node {
	return &Node{Type: NodeSymbol, Text: name}
}

func NewString(value string) *Node {
	return &Node{Type: NodeString, Text: value}
}

func NewInteger(text string) *Node {
	return &Node{Type: NodeInteger, Text: text}
}

func NewEllipsis() *Node {
	return &Node{Type: NodeEllipsis}
}

func NewList(items []*Node) *Node {
	return &Node{Type: NodeList, Items: items}
}

func NewListWithMeta(items []*Node, metaKeys []string, metaItems []*Node) *Node {
	return &Node{Type: NodeList, Items: items, MetaKeys: metaKeys, MetaItems: metaItems}
}

func NewMap(keys []string, items []*Node) *Node {
	return &Node{Type: NodeMap, Keys: keys, Items: items}
}

// IsAtom checks if the node is an atomic value
func (n *Node) IsAtom() bool {
	return n.Type == NodeSymbol || n.Type == NodeString || n.Type == NodeInteger || n.Type == NodeEllipsis
}

// Meta returns the metadata value stored under key.
func (n *Node) Meta(key string) (*Node, bool) {
	for i, k := range n.MetaKeys {
		if k == key && i < len(n.MetaItems) {
			return n.MetaItems[i], true
		}
	}
	return nil, false
}

type parser struct {
	lexer        *lexer
	currentToken token
	peekToken    token
}

// Parse parses the entire input and returns the top-level datum
func Parse(input string) (*Node, error) {
	p := &parser{lexer: newLexer(input)}
	p.nextToken()
	p.nextToken()

	result, err := p.parseDatum()
	if len(p.lexer.errors) > 0 {
		// Lexer errors take priority because they might cause confusing parser errors.
		return nil, fmt.Errorf("%s", p.lexer.errors[0])
	}
	if err != nil {
		return nil, err
	}

	if p.currentToken.Type != tokenEOF {
		return nil, fmt.Errorf("offset %d: expected EOF but got %s", p.currentToken.Position, p.currentToken.Type)
	}

	return result, nil
}

func (p *parser) nextToken() {
	p.currentToken = p.peekToken
	p.peekToken = p.lexer.nextToken()
}

func (p *parser) parseDatum() (*Node, error) {
	tok := p.currentToken
	switch tok.Type {
	case tokenSymbol:
		p.nextToken()
		return NewSymbol(tok.Value), nil
	case tokenString:
		p.nextToken()
		return NewString(tok.Value), nil
	case tokenInteger:
		// Validation is left to callers, which know the range they need.
		p.nextToken()
		return NewInteger(tok.Value), nil
	case tokenEllipsis:
		p.nextToken()
		return NewEllipsis(), nil
	case tokenLParen:
		return p.parseList()
	case tokenLBrace:
		return p.parseMap()
	default:
		return nil, fmt.Errorf("offset %d: unexpected token: %s", tok.Position, tok.Type)
	}
}

func (p *parser) parseList() (*Node, error) {
	var items []*Node
	var metaKeys []string
	var metaItems []*Node
	p.nextToken() // consume '('

	for p.currentToken.Type != tokenRParen && p.currentToken.Type != tokenEOF {
		if p.currentToken.Type != tokenCaret {
			item, err := p.parseDatum()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			continue
		}

		p.nextToken() // consume '^'
		if p.currentToken.Type != tokenLBrace {
			return nil, fmt.Errorf("offset %d: expected '{' after '^' but got %s", p.currentToken.Position, p.currentToken.Type)
		}
		meta, err := p.parseMap()
		if err != nil {
			return nil, err
		}
	merge:
		for i, key := range meta.Keys {
			for j, existing := range metaKeys {
				if existing == key {
					metaItems[j] = meta.Items[i]
					continue merge
				}
			}
			metaKeys = append(metaKeys, key)
			metaItems = append(metaItems, meta.Items[i])
		}
	}

	if p.currentToken.Type != tokenRParen {
		return nil, fmt.Errorf("offset %d: expected ')' but got %s", p.currentToken.Position, p.currentToken.Type)
	}
	p.nextToken() // consume ')'

	if len(metaKeys) > 0 {
		return NewListWithMeta(items, metaKeys, metaItems), nil
	}
	return NewList(items), nil
}

func (p *parser) parseMap() (*Node, error) {
	p.nextToken() // consume '{'

	var keys []string
	var items []*Node

	for p.currentToken.Type != tokenRBrace && p.currentToken.Type != tokenEOF {
		if p.currentToken.Type != tokenSymbol {
			return nil, fmt.Errorf("offset %d: expected symbol for map key but got %s", p.currentToken.Position, p.currentToken.Type)
		}
		keys = append(keys, p.currentToken.Value)
		p.nextToken()

		if p.currentToken.Type != tokenColon {
			return nil, fmt.Errorf("offset %d: expected ':' after map key but got %s", p.currentToken.Position, p.currentToken.Type)
		}
		p.nextToken()

		value, err := p.parseDatum()
		if err != nil {
			return nil, err
		}
		items = append(items, value)

		if p.currentToken.Type == tokenComma {
			p.nextToken()
		} else if p.currentToken.Type != tokenRBrace {
			return nil, fmt.Errorf("offset %d: expected ',' or '}' in map but got %s", p.currentToken.Position, p.currentToken.Type)
		}
	}

	if p.currentToken.Type != tokenRBrace {
		return nil, fmt.Errorf("offset %d: expected '}' but got %s", p.currentToken.Position, p.currentToken.Type)
	}
	p.nextToken() // consume '}'

	return NewMap(keys, items), nil
}

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenSymbol
	tokenString
	tokenInteger
	tokenEllipsis
	tokenLParen
	tokenRParen
	tokenLBrace
	tokenRBrace
	tokenColon
	tokenComma
	tokenCaret
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "EOF"
	case tokenSymbol:
		return "symbol"
	case tokenString:
		return "string"
	case tokenInteger:
		return "integer"
	case tokenEllipsis:
		return "ellipsis"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	case tokenLBrace:
		return "'{'"
	case tokenRBrace:
		return "'}'"
	case tokenColon:
		return "':'"
	case tokenComma:
		return "','"
	case tokenCaret:
		return "'^'"
	default:
		return fmt.Sprintf("unknown token %d", int(t))
	}
}

type token struct {
	Type     tokenType
	Value    string
	Position int
}

// lexer decodes its input as UTF-8. Symbols may contain any letter.
type lexer struct {
	input    string
	position int // byte offset just past current
	width    int // byte width of current
	current  rune
	errors   []string
}

func newLexer(input string) *lexer {
	l := &lexer{input: input}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.position >= len(l.input) {
		l.current = 0
		l.width = 1
	} else {
		l.current, l.width = utf8.DecodeRuneInString(l.input[l.position:])
	}
	l.position += l.width
}

// start is the byte offset of current.
func (l *lexer) start() int {
	return l.position - l.width
}

func (l *lexer) peekChar() rune {
	if l.position >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.position:])
	return r
}

func (l *lexer) errorf(format string, args ...interface{}) token {
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
	return token{Type: tokenEOF, Position: l.start()}
}

func (l *lexer) skipWhitespace() {
	for unicode.IsSpace(l.current) {
		l.readChar()
	}
}

func (l *lexer) skipComment() {
	for l.current != '\n' && l.current != '\r' && l.current != 0 {
		l.readChar()
	}
}

func (l *lexer) readSymbol() string {
	start := l.start()
	for isSymbolChar(l.current) {
		l.readChar()
	}
	return l.input[start:l.start()]
}

func (l *lexer) readString() (string, error) {
	var result strings.Builder
	l.readChar() // skip opening quote

	for l.current != '"' && l.current != 0 {
		if l.current == '\\' {
			l.readChar()
			switch l.current {
			case '"':
				result.WriteByte('"')
			case '\\':
				result.WriteByte('\\')
			default:
				return "", fmt.Errorf("invalid escape sequence: \\%c", l.current)
			}
		} else {
			// Copy the source bytes so that invalid UTF-8 survives unchanged.
			result.WriteString(l.input[l.start():l.position])
		}
		l.readChar()
	}

	if l.current != '"' {
		return "", fmt.Errorf("unterminated string")
	}
	l.readChar() // skip closing quote

	return result.String(), nil
}

func (l *lexer) readInteger() string {
	start := l.start()
	if l.current == '+' || l.current == '-' {
		l.readChar()
	}
	for isDigit(l.current) {
		l.readChar()
	}
	return l.input[start:l.start()]
}

var punctuation = map[rune]tokenType{
	'(': tokenLParen,
	')': tokenRParen,
	'{': tokenLBrace,
	'}': tokenRBrace,
	':': tokenColon,
	',': tokenComma,
	'^': tokenCaret,
}

func (l *lexer) nextToken() token {
	for {
		l.skipWhitespace()
		pos := l.start()

		if typ, ok := punctuation[l.current]; ok {
			value := string(l.current)
			l.readChar()
			return token{Type: typ, Value: value, Position: pos}
		}

		switch {
		case l.current == 0 && l.position > len(l.input):
			return token{Type: tokenEOF, Position: pos}
		case l.current == ';':
			l.skipComment()
			continue
		case l.current == '"':
			str, err := l.readString()
			if err != nil {
				return l.errorf("%v", err)
			}
			return token{Type: tokenString, Value: str, Position: pos}
		case l.current == '.':
			if strings.HasPrefix(l.input[pos:], "...") {
				l.readChar()
				l.readChar()
				l.readChar()
				return token{Type: tokenEllipsis, Value: "...", Position: pos}
			}
			return l.errorf("unexpected character '.'")
		case unicode.IsLetter(l.current):
			return token{Type: tokenSymbol, Value: l.readSymbol(), Position: pos}
		case isDigit(l.current):
			return token{Type: tokenInteger, Value: l.readInteger(), Position: pos}
		case l.current == '+' || l.current == '-':
			if isDigit(l.peekChar()) {
				return token{Type: tokenInteger, Value: l.readInteger(), Position: pos}
			}
			// A lone sign is a symbol.
			l.readChar()
			return token{Type: tokenSymbol, Value: l.input[pos:l.start()], Position: pos}
		default:
			return l.errorf("unexpected character '%c'", l.current)
		}
	}
}

// isDigit accepts ASCII digits only; integer text must parse with strconv.
func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isSymbolChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
}
