package pipelang

import (
	"fmt"
	"regexp"
	"strings"
)

// composition is a stage list resolved against a library.
type composition struct {
	key      string
	blocks   []ParameterBlock
	attribs  *VertexAttribs
	vertex   []Stage
	fragment []Stage
	states   []*StageState
}

// depthOnly reports whether the composition has no fragment stage.
func (c *composition) depthOnly() bool {
	return len(c.fragment) == 0
}

// generatedShaders is the codegen output of one composition. PS is empty for depth-only compositions.
type generatedShaders struct {
	VS string
	PS string
}

var identRegex = regexp.MustCompile(`\w+`)

// generator emits the WGSL of one shader. Each struct is written at most once per shader.
type generator struct {
	structs map[string]string
	emitted map[string]bool
	b       strings.Builder
}

func newGenerator(structs map[string]string) *generator {
	return &generator{structs: structs, emitted: make(map[string]bool)}
}

// generate produces the vertex and fragment sources of c.
//
// Parameters:
//   - c: the resolved composition
//   - structs: the library's struct sources by name
//
// Returns:
//   - generatedShaders: the WGSL sources
//   - error: an error if an include or a binding type cannot be resolved, or an entry point is missing
func generate(c *composition, structs map[string]string) (generatedShaders, error) {
	var out generatedShaders

	vs := newGenerator(structs)
	if err := vs.header(c, "vertex"); err != nil {
		return out, err
	}
	if c.attribs != nil && len(c.attribs.Locations()) > 0 {
		vs.b.WriteString(c.attribs.wgslInput())
		vs.b.WriteString("\n")
	}
	for _, s := range c.vertex {
		if err := vs.expand(s.Name, s.Source); err != nil {
			return out, err
		}
	}
	out.VS = vs.b.String()
	if !vertexEntryRegex.MatchString(out.VS) {
		return out, fmt.Errorf("%s: no @vertex entry point", c.key)
	}

	if c.depthOnly() {
		return out, nil
	}
	ps := newGenerator(structs)
	if err := ps.header(c, "fragment"); err != nil {
		return out, err
	}
	for _, s := range c.fragment {
		if err := ps.expand(s.Name, s.Source); err != nil {
			return out, err
		}
	}
	out.PS = ps.b.String()
	if !fragmentEntryRegex.MatchString(out.PS) {
		return out, fmt.Errorf("%s: no @fragment entry point", c.key)
	}
	return out, nil
}

// header writes the banner, the structs the bindings use and the binding declarations of every block.
func (g *generator) header(c *composition, stage string) error {
	fmt.Fprintf(&g.b, "// %s %s shader generated by pipelang\n\n", c.key, stage)

	for _, pb := range c.blocks {
		for _, b := range pb.Bindings() {
			for _, ident := range identRegex.FindAllString(b.WGSLType, -1) {
				if _, ok := g.structs[ident]; ok {
					if err := g.include(ident); err != nil {
						return err
					}
				}
			}
		}
	}

	for _, pb := range c.blocks {
		set := pb.SetIndex()
		for _, b := range pb.Bindings() {
			decl, err := declaration(pb.Name(), set, b)
			if err != nil {
				return err
			}
			g.b.WriteString(decl)
			g.b.WriteString("\n")
		}
	}
	g.b.WriteString("\n")
	return nil
}

// declaration renders the module-scope variable of one binding.
func declaration(block string, set uint32, b Binding) (string, error) {
	if b.WGSLType == "" {
		return "", fmt.Errorf("%s.%s: %s binding needs a wgsl type", block, b.Name, b.Type)
	}
	var space string
	switch b.Type {
	case DescriptorTypeUniform:
		space = "<uniform>"
	case DescriptorTypeBuffer:
		space = "<storage, read_write>"
	case DescriptorTypeReadOnlyBuffer:
		space = "<storage, read>"
	}
	return fmt.Sprintf("@group(%d) @binding(%d) var%s %s: %s;", set, b.Binding, space, b.Name, b.WGSLType), nil
}

// include writes a struct and, before it, every struct it includes.
func (g *generator) include(name string) error {
	if g.emitted[name] {
		return nil
	}
	src, ok := g.structs[name]
	if !ok {
		return fmt.Errorf("unknown struct %q", name)
	}
	g.emitted[name] = true
	return g.expand(name, src)
}

// expand copies source, replacing //@pl:include lines with the named struct.
func (g *generator) expand(origin, source string) error {
	for i, line := range strings.Split(source, "\n") {
		if m := includeRegex.FindStringSubmatch(line); m != nil {
			if err := g.include(m[1]); err != nil {
				return fmt.Errorf("%s:%d: %w", origin, i+1, err)
			}
			continue
		}
		g.b.WriteString(line)
		g.b.WriteString("\n")
	}
	return nil
}
