// Copyright (c) 2020-2024 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Configuration. A config file has exactly one root component, the server:
//
//	server {
//	    .host = "127.0.0.1"
//	    .port = 9999
//	    .forbidden = [ "paths": ("..", "~"), "files": (".py") ]
//	}

package hemi

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// configurator parses a config text and creates a policy.
type configurator struct {
	// States
	tokens []token // the token list
	index  int     // token index
}

func (c *configurator) policyFromText(text string) (policy *Policy, err error) {
	defer func() {
		if x := recover(); x != nil {
			err = _recoveredError(x)
		}
	}()
	var l lexer
	c.tokens = l.scanText(text)
	return c.newPolicy()
}
func (c *configurator) policyFromFile(base string, path string) (policy *Policy, err error) {
	defer func() {
		if x := recover(); x != nil {
			err = _recoveredError(x)
		}
	}()
	var l lexer
	c.tokens = l.scanFile(base, path)
	return c.newPolicy()
}

func _recoveredError(x any) error {
	if err, ok := x.(error); ok {
		return err
	}
	return fmt.Errorf("%v", x)
}

func (c *configurator) showTokens() {
	for i := 0; i < len(c.tokens); i++ {
		token := &c.tokens[i]
		Printf("kind=%16s line=%4d file=%s    %s\n", token.name(), token.line, token.file, token.text)
	}
}

func (c *configurator) currentToken() *token { return &c.tokens[c.index] }
func (c *configurator) forwardToken() *token {
	c._forwardCheckEOF()
	return &c.tokens[c.index]
}
func (c *configurator) currentTokenIs(kind int16) bool { return c.tokens[c.index].kind == kind }
func (c *configurator) nextTokenIs(kind int16) bool {
	if c.index+1 >= len(c.tokens) {
		return false
	}
	return c.tokens[c.index+1].kind == kind
}
func (c *configurator) expectToken(kind int16) *token {
	current := &c.tokens[c.index]
	if current.kind != kind {
		panic(fmt.Errorf("configurator: expect %s, but get %s=%s (in line %d)", tokenNames[kind], tokenNames[current.kind], current.text, current.line))
	}
	return current
}
func (c *configurator) forwardExpectToken(kind int16) *token {
	c._forwardCheckEOF()
	return c.expectToken(kind)
}
func (c *configurator) _forwardCheckEOF() {
	if c.index++; c.index >= len(c.tokens) {
		panic(errors.New("configurator: unexpected EOF"))
	}
}

func (c *configurator) newPolicy() (*Policy, error) {
	if len(c.tokens) == 0 {
		panic(errors.New("configurator: empty config"))
	}
	if current := c.currentToken(); current.kind != tokenComponent || current.text != "server" {
		panic(errors.New("configurator: root component is not server"))
	}
	if DebugLevel() >= 2 {
		c.showTokens()
	}
	comp := newConfigComp("server")
	c.forwardToken()
	c._parseLeaf(comp)
	if c.index != len(c.tokens)-1 {
		next := c.tokens[c.index+1]
		panic(fmt.Errorf("configurator: unexpected %s=%s after server (in line %d)", next.name(), next.text, next.line))
	}
	policy := new(Policy)
	if err := policy.onConfigure(comp); err != nil {
		return nil, err
	}
	return policy, nil
}

func (c *configurator) _parseLeaf(comp *configComp) {
	c.expectToken(tokenLeftBrace) // {
	for {
		current := c.forwardToken()
		if current.kind == tokenRightBrace { // }
			return
		}
		if current.kind == tokenProperty { // .property
			c._parseAssign(current, comp)
			continue
		}
		panic(fmt.Errorf("configurator: unknown token %s=%s (in line %d) in %s", current.name(), current.text, current.line, comp.name))
	}
}
func (c *configurator) _parseAssign(prop *token, comp *configComp) {
	if c.nextTokenIs(tokenLeftBrace) { // {
		panic(fmt.Errorf("configurator: unknown component '%s' (in line %d)", prop.text, prop.line))
	}
	c.forwardExpectToken(tokenEqual) // =
	c.forwardToken()
	var value Value
	c._parseValue(comp, prop.text, &value)
	comp.props[prop.text] = value
}

func (c *configurator) _parseValue(comp *configComp, prop string, value *Value) {
	current := c.currentToken()
	switch current.kind {
	case tokenBool:
		value.kind, value.value = tokenBool, current.text == "true"
	case tokenInteger:
		value.kind, value.value = tokenInteger, _parseSize(current.text)
	case tokenString:
		value.kind, value.value = tokenString, current.text
	case tokenDuration:
		value.kind, value.value = tokenDuration, _parseDuration(current.text)
	case tokenLeftParen: // (...)
		c._parseList(comp, prop, value)
	case tokenLeftBracket: // [...]
		c._parseDict(comp, prop, value)
	case tokenProperty: // .property
		if propRef := current.text; prop == "" || prop == propRef {
			panic(errors.New("configurator: cannot refer to self"))
		} else if valueRef, ok := comp.Find(propRef); !ok {
			panic(fmt.Errorf("configurator: refer to a prop that doesn't exist in line %d", current.line))
		} else {
			*value = valueRef
		}
	default:
		panic(fmt.Errorf("configurator: expect a value, but get token %s=%s (in line %d)", current.name(), current.text, current.line))
	}

	if value.kind != tokenString {
		// Currently only strings can be concatenated
		return
	}

	for c.nextTokenIs(tokenPlus) { // any concatenations?
		c.forwardToken() // +
		c.forwardToken()
		var str Value
		if c.currentTokenIs(tokenString) || c.currentTokenIs(tokenProperty) {
			c._parseValue(comp, prop, &str)
		}
		if str.kind != tokenString {
			panic(errors.New("configurator: cannot concat string with other types. token=" + c.currentToken().text))
		}
		value.value = value.value.(string) + str.value.(string)
	}
}
func _parseSize(text string) int64 {
	last := text[len(text)-1]
	if byteIsDigit(last) {
		n64, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			panic(fmt.Errorf("configurator: bad integer %s", text))
		}
		return n64
	}
	size, err := strconv.ParseInt(text[:len(text)-1], 10, 64)
	if err != nil {
		panic(fmt.Errorf("configurator: bad size %s", text))
	}
	switch last {
	case 'K':
		size *= K
	case 'M':
		size *= M
	case 'G':
		size *= G
	case 'T':
		size *= T
	}
	return size
}
func _parseDuration(text string) time.Duration {
	last := len(text) - 1
	n, err := strconv.ParseInt(text[:last], 10, 64)
	if err != nil {
		panic(fmt.Errorf("configurator: bad duration %s", text))
	}
	d := time.Duration(n)
	switch text[last] {
	case 's':
		d *= time.Second
	case 'm':
		d *= time.Minute
	case 'h':
		d *= time.Hour
	case 'd':
		d *= 24 * time.Hour
	}
	return d
}
func (c *configurator) _parseList(comp *configComp, prop string, value *Value) {
	list := []Value{}
	c.expectToken(tokenLeftParen) // (
	for {
		current := c.forwardToken()
		if current.kind == tokenRightParen { // )
			break
		}
		var elem Value
		c._parseValue(comp, prop, &elem)
		list = append(list, elem)
		current = c.forwardToken()
		if current.kind == tokenRightParen { // )
			break
		} else if current.kind != tokenComma { // ,
			panic(fmt.Errorf("configurator: bad list in line %d", current.line))
		}
	}
	value.kind, value.value = tokenList, list
}
func (c *configurator) _parseDict(comp *configComp, prop string, value *Value) {
	dict := make(map[string]Value)
	c.expectToken(tokenLeftBracket) // [
	for {
		current := c.forwardToken()
		if current.kind == tokenRightBracket { // ]
			break
		}
		k := c.expectToken(tokenString)  // k
		c.forwardExpectToken(tokenColon) // :
		c.forwardToken()                 // v
		var v Value
		c._parseValue(comp, prop, &v)
		dict[k.text] = v
		current = c.forwardToken()
		if current.kind == tokenRightBracket { // ]
			break
		} else if current.kind != tokenComma { // ,
			panic(fmt.Errorf("configurator: bad dict in line %d", current.line))
		}
	}
	value.kind, value.value = tokenDict, dict
}

const ( // units
	K = 1 << 10
	M = 1 << 20
	G = 1 << 30
	T = 1 << 40
)

// configComp is a parsed component with its properties.
type configComp struct {
	name  string
	props map[string]Value
}

func newConfigComp(name string) *configComp {
	return &configComp{name: name, props: make(map[string]Value)}
}

func (c *configComp) Find(name string) (value Value, ok bool) {
	value, ok = c.props[name]
	return
}

// configureProp sets *prop from the named property, or to defaultValue if it is absent.
// It returns false if the property is absent.
func configureProp[T any](c *configComp, name string, prop *T, conv func(*Value) (T, bool), check func(value T) error, defaultValue T) bool {
	v, ok := c.Find(name)
	if !ok {
		*prop = defaultValue
		return false
	}
	value, ok := conv(&v)
	if !ok {
		panic(fmt.Errorf("invalid .%s in %s", name, c.name))
	}
	if check != nil {
		if err := check(value); err != nil {
			panic(fmt.Errorf(".%s is error in %s: %s", name, c.name, err.Error()))
		}
	}
	*prop = value
	return true
}

const ( // list of tokens. if you change this list, change tokenNames too.
	// Components
	tokenComponent = 1 + iota // server
	// Properties
	tokenProperty // .host, .port, ...
	// Operators
	tokenLeftBrace    // {
	tokenRightBrace   // }
	tokenLeftBracket  // [
	tokenRightBracket // ]
	tokenLeftParen    // (
	tokenRightParen   // )
	tokenComma        // ,
	tokenColon        // :
	tokenPlus         // +
	tokenEqual        // =
	// Values
	tokenBool     // true, false
	tokenInteger  // 123, 16K, 256M, ...
	tokenString   // "", "abc", `def`, ...
	tokenDuration // 1s, 2m, 3h, 4d, ...
	tokenList     // lists: (...)
	tokenDict     // dicts: [...]
)

var tokenNames = [...]string{ // token names. if you change this list, change token list too.
	// Components
	tokenComponent: "component",
	// Properties
	tokenProperty: "property",
	// Operators
	tokenLeftBrace:    "leftBrace",
	tokenRightBrace:   "rightBrace",
	tokenLeftBracket:  "leftBracket",
	tokenRightBracket: "rightBracket",
	tokenLeftParen:    "leftParen",
	tokenRightParen:   "rightParen",
	tokenComma:        "comma",
	tokenColon:        "colon",
	tokenPlus:         "plus",
	tokenEqual:        "equal",
	// Values
	tokenBool:     "bool",
	tokenInteger:  "integer",
	tokenString:   "string",
	tokenDuration: "duration",
	tokenList:     "list",
	tokenDict:     "dict",
}

var ( // solo tokens
	soloKinds = [256]int16{ // keep sync with soloTexts
		'{': tokenLeftBrace,
		'}': tokenRightBrace,
		'[': tokenLeftBracket,
		']': tokenRightBracket,
		'(': tokenLeftParen,
		')': tokenRightParen,
		',': tokenComma,
		':': tokenColon,
		'+': tokenPlus,
	}
	soloTexts = [...]string{ // keep sync with soloKinds
		'{': "{",
		'}': "}",
		'[': "[",
		']': "]",
		'(': "(",
		')': ")",
		',': ",",
		':': ":",
		'+': "+",
	}
)

// token is a token in config file.
type token struct {
	kind int16  // tokenXXX
	line int32  // at line number
	file string // file path
	text string // text literal
}

func (t token) name() string { return tokenNames[t.kind] }

// lexer scans tokens in config file.
type lexer struct {
	index int
	limit int
	text  string // the config text
	base  string
	file  string
}

func (l *lexer) scanText(text string) []token {
	l.text = text
	return l.scan()
}
func (l *lexer) scanFile(base string, file string) []token {
	l.text = l.load(base, file)
	l.base, l.file = base, file
	return l.scan()
}

func (l *lexer) scan() []token {
	l.index, l.limit = 0, len(l.text)
	var tokens []token
	line := int32(1)
	for l.index < l.limit {
		from := l.index
		switch b := l.text[l.index]; b {
		case ' ', '\t', '\r': // blank, ignore
			l.index++
		case '\n': // new line
			line++
			l.index++
		case '#': // shell comment
			l.nextUntil('\n')
		case '/': // line comment or stream comment
			if c := l.mustNext(); c == '/' { // line comment
				l.nextUntil('\n')
			} else if c == '*' { // stream comment
				l.index++
				for l.index < l.limit {
					if d := l.text[l.index]; d == '/' && l.index-from >= 3 && l.text[l.index-1] == '*' { // the opening '*' doesn't close
						break
					} else {
						if d == '\n' {
							line++
						}
						l.index++
					}
				}
				l.checkEOF()
				l.index++
			} else {
				panic(fmt.Errorf("lexer: unknown character %c (ascii %v) in line %d (%s)", b, b, line, l.file))
			}
		case '=': // =
			tokens = append(tokens, token{tokenEqual, line, l.file, "="})
			l.index++
		case '"', '`': // "string" or `string`
			s := l.text[l.index] // " or `
			l.index++
			l.nextUntil(s) // " or `
			l.checkEOF()
			tokens = append(tokens, token{tokenString, line, l.file, l.text[from+1 : l.index]})
			l.index++
		case '<': // <includedFile>
			if l.base == "" {
				panic(errors.New("lexer: include is not allowed in text mode"))
			}
			l.index++
			l.nextUntil('>')
			l.checkEOF()
			file := l.text[from+1 : l.index]
			l.index++
			var ll lexer
			tokens = append(tokens, ll.scanFile(l.base, file)...)
		case '%': // %constant
			l.nextAlnums()
			name := l.text[from+1 : l.index]
			var value string
			switch name {
			case "topDir":
				value = TopDir()
			case "logDir":
				value = LogDir()
			case "tmpDir":
				value = TmpDir()
			case "varDir":
				value = VarDir()
			default:
				panic(fmt.Errorf("lexer: '%%%s' is not a valid constant in line %d (%s)", name, line, l.file))
			}
			tokens = append(tokens, token{tokenString, line, l.file, value})
		case '.': // .property
			l.nextAlnums()
			if l.index == from+1 {
				panic(fmt.Errorf("lexer: empty property name in line %d (%s)", line, l.file))
			}
			tokens = append(tokens, token{tokenProperty, line, l.file, l.text[from+1 : l.index]})
		default:
			if kind := soloKinds[b]; kind != 0 { // kind starts from 1
				tokens = append(tokens, token{kind, line, l.file, soloTexts[b]})
				l.index++
			} else if byteIsAlpha(b) { // 'a-zA-Z'
				l.nextAlnums() // '0-9a-zA-Z'
				if identifier := l.text[from:l.index]; identifier == "true" || identifier == "false" {
					tokens = append(tokens, token{tokenBool, line, l.file, identifier})
				} else if identifier == "server" {
					tokens = append(tokens, token{tokenComponent, line, l.file, identifier})
				} else {
					panic(fmt.Errorf("lexer: '%s' is not a valid component in line %d (%s)", identifier, line, l.file))
				}
			} else if byteIsDigit(b) { // '0-9'
				l.nextDigits()
				kind := int16(tokenInteger)
				if l.index < l.limit {
					switch l.text[l.index] {
					case 's', 'm', 'h', 'd':
						kind = tokenDuration
						l.index++
					case 'K', 'M', 'G', 'T':
						l.index++
					}
				}
				tokens = append(tokens, token{kind, line, l.file, l.text[from:l.index]})
			} else {
				panic(fmt.Errorf("lexer: unknown character %c (ascii %v) in line %d (%s)", b, b, line, l.file))
			}
		}
	}
	return tokens
}

func (l *lexer) nextUntil(b byte) {
	if i := strings.IndexByte(l.text[l.index:], b); i == -1 {
		l.index = l.limit
	} else {
		l.index += i
	}
}
func (l *lexer) mustNext() byte {
	l.index++
	l.checkEOF()
	return l.text[l.index]
}
func (l *lexer) checkEOF() {
	if l.index == l.limit {
		panic(errors.New("lexer: unexpected eof"))
	}
}
func (l *lexer) nextAlnums() {
	for l.index++; l.index < l.limit && byteIsAlnum(l.text[l.index]); l.index++ {
	}
}
func (l *lexer) nextDigits() {
	for l.index++; l.index < l.limit && byteIsDigit(l.text[l.index]); l.index++ {
	}
}

func (l *lexer) load(base string, file string) string {
	path := file
	if file != "" && file[0] != '/' && base != "" {
		if base[len(base)-1] == '/' {
			path = base + file
		} else {
			path = base + "/" + file
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Value is a value in config file.
type Value struct {
	kind  int16 // tokenXXX in values
	value any   // bools, integers, strings, durations, lists, and dicts
}

func (v *Value) Bool() (b bool, ok bool) {
	b, ok = v.value.(bool)
	return
}
func (v *Value) Int64() (i64 int64, ok bool) {
	i64, ok = v.value.(int64)
	return
}
func (v *Value) Uint16() (u16 uint16, ok bool) { return toInt[uint16](v) }
func toInt[T ~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](v *Value) (i T, ok bool) {
	i64, ok := v.Int64()
	i = T(i64)
	if ok && int64(i) != i64 {
		ok = false
	}
	return
}
func (v *Value) String() (s string, ok bool) {
	s, ok = v.value.(string)
	return
}
func (v *Value) Duration() (d time.Duration, ok bool) {
	d, ok = v.value.(time.Duration)
	return
}
func (v *Value) StringList() (list []string, ok bool) {
	l, ok := v.value.([]Value)
	if !ok {
		return
	}
	list = make([]string, 0, len(l))
	for _, value := range l {
		s, isString := value.String()
		if !isString {
			return nil, false
		}
		list = append(list, s)
	}
	return
}
func (v *Value) Dict() (dict map[string]Value, ok bool) {
	dict, ok = v.value.(map[string]Value)
	return
}

func byteIsAlpha(b byte) bool { return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' }
func byteIsDigit(b byte) bool { return b >= '0' && b <= '9' }
func byteIsAlnum(b byte) bool { return byteIsAlpha(b) || byteIsDigit(b) }
