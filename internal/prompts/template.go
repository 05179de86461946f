package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"
)

// templateRefs is what one prompt text references: data fields, named
// templates it calls and named templates it defines.
type templateRefs struct {
	fields  map[string]bool
	calls   map[string]bool
	defines map[string]bool
}

// scanTemplate parses text with the prompt funcs and walks every tree it
// defines. Fields under {{range}} and {{with}} are qualified by the
// pipeline that set dot, so ".Number" inside "range .Chapter.Verses"
// is reported as "Chapter.Verses.Number".
func scanTemplate(text string) (*templateRefs, error) {
	tmpl, err := template.New("scan").Funcs(Funcs).Parse(text)
	if err != nil {
		return nil, err
	}
	refs := &templateRefs{
		fields:  make(map[string]bool),
		calls:   make(map[string]bool),
		defines: make(map[string]bool),
	}
	for _, t := range tmpl.Templates() {
		if t.Tree == nil || t.Tree.Root == nil {
			continue
		}
		if t.Name() != "scan" {
			refs.defines[t.Name()] = true
		}
		refs.walk(t.Tree.Root, "")
	}
	return refs, nil
}

func (r *templateRefs) walk(node parse.Node, dot string) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			r.walk(c, dot)
		}
	case *parse.ActionNode:
		r.pipe(n.Pipe, dot)
	case *parse.IfNode:
		r.branch(&n.BranchNode, dot, false)
	case *parse.RangeNode:
		r.branch(&n.BranchNode, dot, true)
	case *parse.WithNode:
		r.branch(&n.BranchNode, dot, true)
	case *parse.TemplateNode:
		r.calls[n.Name] = true
		r.pipe(n.Pipe, dot)
	}
}

func (r *templateRefs) branch(b *parse.BranchNode, dot string, rebinds bool) {
	r.pipe(b.Pipe, dot)
	inner := dot
	if rebinds {
		if f := singleField(b.Pipe); f != nil {
			inner = join(dot, strings.Join(f.Ident, "."))
		}
	}
	r.walk(b.List, inner)
	// The else arm of range and with keeps the outer dot.
	r.walk(b.ElseList, dot)
}

func (r *templateRefs) pipe(p *parse.PipeNode, dot string) {
	if p == nil {
		return
	}
	for _, cmd := range p.Cmds {
		for _, arg := range cmd.Args {
			r.arg(arg, dot)
		}
	}
}

func (r *templateRefs) arg(node parse.Node, dot string) {
	switch n := node.(type) {
	case *parse.FieldNode:
		r.fields[join(dot, strings.Join(n.Ident, "."))] = true
	case *parse.VariableNode:
		// $.Field always reads from the root data.
		if len(n.Ident) > 1 && n.Ident[0] == "$" {
			r.fields[strings.Join(n.Ident[1:], ".")] = true
		}
	case *parse.ChainNode:
		r.arg(n.Node, dot)
	case *parse.PipeNode:
		r.pipe(n, dot)
	}
}

// singleField returns the field when the pipeline is exactly ".A.B".
func singleField(p *parse.PipeNode) *parse.FieldNode {
	if p == nil || len(p.Decl) > 0 || len(p.Cmds) != 1 || len(p.Cmds[0].Args) != 1 {
		return nil
	}
	f, _ := p.Cmds[0].Args[0].(*parse.FieldNode)
	return f
}

func join(dot, field string) string {
	if dot == "" {
		return field
	}
	return dot + "." + field
}

// ExtractVariables lists the data fields a prompt template reads, sorted.
// For example "{{.Chapter.Book}} {{range .Chapter.Verses}}{{.Number}}{{end}}"
// returns ["Chapter.Book", "Chapter.Verses", "Chapter.Verses.Number"].
// Text that does not parse yields nil.
func ExtractVariables(text string) []string {
	refs, err := scanTemplate(text)
	if err != nil {
		return nil
	}
	return sortedKeys(refs.fields)
}

// checkTemplateCalls reports {{template}} calls in text that name neither a
// block defined in text nor one of known.
func checkTemplateCalls(text string, known map[string]bool) error {
	refs, err := scanTemplate(text)
	if err != nil {
		return err
	}
	var missing []string
	for _, name := range sortedKeys(refs.calls) {
		if !refs.defines[name] && !known[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("calls undefined template(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HashText returns the SHA-256 of a prompt text; it is the prompt CID.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
