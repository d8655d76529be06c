package descriptor

// demoTOML is the bundled demo-grammar descriptor, the same mapping
// shipped as lang/demo.toml. Kept inline so the CLI works with no
// configuration at all.
const demoTOML = `
language = "demo"

[nodes.entity]
diagram_type = "node:entity"
shape = "rectangle"
width = 120
height = 60
name_base = "Entity"

[[nodes.entity.ports]]
id = "in"
side = "left"
offset = 0.5

[[nodes.entity.ports]]
id = "out"
side = "right"
offset = 0.5

[nodes.property]
diagram_type = "node:field"
shape = "label"
width = 100
height = 20
name_base = "field"

[edges.target]
diagram_type = "edge:reference"

[[rules]]
edge_type = "edge:reference"
source_type = "node:entity"
target_type = "node:entity"
`

// Demo returns the descriptor for the bundled demo grammar.
func Demo() *Descriptor {
	d, err := Load(demoTOML)
	if err != nil {
		// The inline asset is covered by tests; a parse failure here
		// is a build defect.
		panic(err)
	}
	return d
}
