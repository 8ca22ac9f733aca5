// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"reflect"
	"sort"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
)

// stepFunc is the global called at the head of every loop iteration and function body.
const stepFunc = "__gw_step"

type insertion struct {
	at    int
	text  string
	close bool
}

var fileType = reflect.TypeOf((*file.File)(nil))

// instrument rewrites source so that every loop iteration and function call of the script
// calls stepFunc first. Steps are charged as cycles, which bounds a run by the same amount of
// work on any host.
func instrument(name, source string) (string, error) {
	prg, err := parser.ParseFile(nil, name, source, 0)
	if err != nil {
		return "", err
	}
	base := prg.File.Base()

	var (
		ins  []insertion
		seen = make(map[uintptr]bool)
		walk func(v reflect.Value)
	)
	walk = func(v reflect.Value) {
		switch v.Kind() {
		case reflect.Interface:
			if !v.IsNil() {
				walk(v.Elem())
			}
		case reflect.Pointer:
			if v.IsNil() || v.Type() == fileType || seen[v.Pointer()] {
				return
			}
			seen[v.Pointer()] = true
			ins = append(ins, stepsOf(v.Interface(), base, source)...)
			walk(v.Elem())
		case reflect.Struct:
			for i := 0; i < v.NumField(); i++ {
				if v.Type().Field(i).IsExported() {
					walk(v.Field(i))
				}
			}
		case reflect.Slice:
			for i := 0; i < v.Len(); i++ {
				walk(v.Index(i))
			}
		}
	}
	walk(reflect.ValueOf(prg.Body))

	// closers go first at a shared offset, they end the node before the next one starts
	sort.SliceStable(ins, func(i, j int) bool {
		if ins[i].at != ins[j].at {
			return ins[i].at < ins[j].at
		}
		return ins[i].close && !ins[j].close
	})

	var b strings.Builder
	b.Grow(len(source) + len(ins)*(len(stepFunc)+4))
	last := 0
	for _, in := range ins {
		b.WriteString(source[last:in.at])
		b.WriteString(in.text)
		last = in.at
	}
	b.WriteString(source[last:])
	return b.String(), nil
}

func stepsOf(node any, base int, source string) []insertion {
	offset := func(idx file.Idx) int { return int(idx) - base }
	atBlock := func(block *ast.BlockStatement) []insertion {
		return []insertion{{at: offset(block.LeftBrace) + 1, text: stepFunc + "();"}}
	}
	loop := func(body ast.Statement) []insertion {
		if block, ok := body.(*ast.BlockStatement); ok {
			return atBlock(block)
		}
		return []insertion{
			{at: offset(body.Idx0()), text: "{" + stepFunc + "();"},
			{at: statementEnd(source, offset(body.Idx1())), text: "}", close: true},
		}
	}

	switch n := node.(type) {
	case *ast.ForStatement:
		return loop(n.Body)
	case *ast.ForInStatement:
		return loop(n.Body)
	case *ast.ForOfStatement:
		return loop(n.Body)
	case *ast.WhileStatement:
		return loop(n.Body)
	case *ast.DoWhileStatement:
		return loop(n.Body)
	case *ast.FunctionLiteral:
		if n.Body != nil {
			return atBlock(n.Body)
		}
	case *ast.ArrowFunctionLiteral:
		switch body := n.Body.(type) {
		case *ast.BlockStatement:
			return atBlock(body)
		case *ast.ExpressionBody:
			return []insertion{
				{at: offset(body.Idx0()), text: "(" + stepFunc + "(), "},
				{at: offset(body.Idx1()), text: ")", close: true},
			}
		}
	}
	return nil
}

// statementEnd moves end past the semicolon terminating a statement, which the parser leaves
// out of the statement's range.
func statementEnd(source string, end int) int {
	i := end
	for i < len(source) && strings.ContainsRune(" \t\r\n", rune(source[i])) {
		i++
	}
	if i < len(source) && source[i] == ';' {
		return i + 1
	}
	return end
}
