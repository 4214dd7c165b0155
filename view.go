package main

import (
	"github.com/phobologic/docreflect/internal/docblock"
	"github.com/phobologic/docreflect/internal/model"
	"github.com/phobologic/docreflect/internal/toon"
)

// The view types are the JSON and YAML shapes of command output.

type annotationView struct {
	Name  string `json:"name" yaml:"name"`
	Kind  string `json:"kind" yaml:"kind"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Line  int    `json:"line,omitempty" yaml:"line,omitempty"`
}

type propertyView struct {
	Name        string           `json:"name" yaml:"name"`
	Visibility  string           `json:"visibility" yaml:"visibility"`
	Static      bool             `json:"static" yaml:"static"`
	Readable    bool             `json:"readable" yaml:"readable"`
	Writable    bool             `json:"writable" yaml:"writable"`
	Type        string           `json:"type,omitempty" yaml:"type,omitempty"`
	Annotations []annotationView `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

type methodView struct {
	Name        string           `json:"name" yaml:"name"`
	Visibility  string           `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	Static      bool             `json:"static" yaml:"static"`
	Type        string           `json:"type,omitempty" yaml:"type,omitempty"`
	Annotations []annotationView `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

type classView struct {
	Name        string           `json:"name" yaml:"name"`
	Found       bool             `json:"found" yaml:"found"`
	Abstract    bool             `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Parent      string           `json:"parent,omitempty" yaml:"parent,omitempty"`
	Ancestors   []string         `json:"ancestors,omitempty" yaml:"ancestors,omitempty"`
	File        string           `json:"file,omitempty" yaml:"file,omitempty"`
	Rank        float64          `json:"rank,omitempty" yaml:"rank,omitempty"`
	Properties  []propertyView   `json:"properties,omitempty" yaml:"properties,omitempty"`
	Methods     []methodView     `json:"methods,omitempty" yaml:"methods,omitempty"`
	Annotations []annotationView `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

type dependencyView struct {
	Source  string   `json:"source" yaml:"source"`
	Target  string   `json:"target" yaml:"target"`
	Symbols []string `json:"symbols" yaml:"symbols"`
}

type projectView struct {
	Project      string           `json:"project" yaml:"project"`
	Root         string           `json:"root" yaml:"root"`
	Classes      []classView      `json:"classes" yaml:"classes"`
	Dependencies []dependencyView `json:"dependencies" yaml:"dependencies"`
}

func viewAnnotations(list []model.Annotation) []annotationView {
	var out []annotationView
	for _, a := range list {
		v := annotationView{Name: a.AnnotationName(), Value: toon.AnnotationValue(a)}
		switch t := a.(type) {
		case model.Attribute:
			v.Kind = "attribute"
			v.Line = t.Line
		case docblock.Tag:
			rec := docblock.ToRecord(t)
			v.Kind = rec.Kind.String()
			v.Type = rec.Type
			v.Line = rec.Location.Line
		}
		out = append(out, v)
	}
	return out
}

func viewProperty(name string, p *model.PropertyMetadata) propertyView {
	return propertyView{
		Name:        name,
		Visibility:  string(p.Visibility),
		Static:      p.Static,
		Readable:    p.Visibility == model.Public && p.Accessibility&model.Read != 0,
		Writable:    p.Visibility == model.Public && p.Accessibility&model.Write != 0,
		Type:        p.Type,
		Annotations: viewAnnotations(p.Annotations),
	}
}

func viewClass(meta *model.ClassMetadata) classView {
	v := classView{
		Name:        meta.Name,
		Found:       meta.Found,
		Abstract:    meta.Abstract,
		Parent:      meta.Parent,
		File:        meta.File,
		Annotations: viewAnnotations(meta.Annotations),
	}
	for _, name := range meta.PropertyOrder {
		v.Properties = append(v.Properties, viewProperty(name, meta.Properties[name]))
	}
	for _, name := range meta.MethodOrder {
		m := meta.Methods[name]
		v.Methods = append(v.Methods, methodView{
			Name:        name,
			Visibility:  string(m.Visibility),
			Static:      m.Static,
			Type:        m.Type,
			Annotations: viewAnnotations(m.Annotations),
		})
	}
	return v
}

func viewProject(pm *model.ProjectMap) projectView {
	v := projectView{
		Project:      pm.Name,
		Root:         pm.Root,
		Classes:      []classView{},
		Dependencies: []dependencyView{},
	}
	for i := range pm.Classes {
		c := &pm.Classes[i]
		cv := classView{Name: c.Name, Found: true}
		if c.Metadata != nil {
			cv = viewClass(c.Metadata)
		}
		cv.File = c.File
		cv.Rank = c.Rank
		v.Classes = append(v.Classes, cv)
	}
	for _, d := range pm.Dependencies {
		v.Dependencies = append(v.Dependencies, dependencyView(d))
	}
	return v
}
