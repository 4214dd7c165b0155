package model

// ClassReport holds the merged metadata of one class discovered by a scan.
type ClassReport struct {
	Name     string
	File     string
	Rank     float64
	Metadata *ClassMetadata
}

// Dependency represents an edge in the type graph:
// Source declares members whose types refer to Target.
type Dependency struct {
	Source  string
	Target  string
	Symbols []string
}

// ProjectMap is the complete scanned project, ready for serialization.
type ProjectMap struct {
	Name         string
	Root         string
	Classes      []ClassReport
	Dependencies []Dependency
}
