// Package persist stores merged class metadata between runs, in SQLite or
// Redis, so unchanged classes need not be parsed and merged again.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/phobologic/docreflect/internal/docblock"
	"github.com/phobologic/docreflect/internal/model"
)

// codecVersion is bumped whenever the encoded layout changes. Records of
// another version decode to ErrVersion and are rebuilt by the caller.
const codecVersion = 2

// ErrVersion is returned when decoding a record written by another version.
var ErrVersion = errors.New("persisted record version mismatch")

type annotationRecord struct {
	Attribute *model.Attribute `json:"attribute,omitempty"`
	Tag       *docblock.Record `json:"tag,omitempty"`
}

type propertyRecord struct {
	Name          string              `json:"name"`
	Visibility    model.Visibility    `json:"visibility,omitempty"`
	Static        bool                `json:"static,omitempty"`
	Accessibility model.Accessibility `json:"accessibility,omitempty"`
	Type          string              `json:"type,omitempty"`
	Annotations   []annotationRecord  `json:"annotations,omitempty"`
}

type methodRecord struct {
	Name        string             `json:"name"`
	Visibility  model.Visibility   `json:"visibility,omitempty"`
	Static      bool               `json:"static,omitempty"`
	Type        string             `json:"type,omitempty"`
	Annotations []annotationRecord `json:"annotations,omitempty"`
}

type classRecord struct {
	Version     int                `json:"version"`
	Name        string             `json:"name"`
	Found       bool               `json:"found"`
	Abstract    bool               `json:"abstract,omitempty"`
	Parent      string             `json:"parent,omitempty"`
	File        string             `json:"file,omitempty"`
	ModTime     int64              `json:"mtime,omitempty"`
	Hash        string             `json:"hash,omitempty"`
	Sources     []string           `json:"sources,omitempty"`
	Properties  []propertyRecord   `json:"properties,omitempty"`
	Methods     []methodRecord     `json:"methods,omitempty"`
	Annotations []annotationRecord `json:"annotations,omitempty"`
}

// Encode serializes meta. Tags of types registered outside the docblock
// package are stored as generic tags.
func Encode(meta *model.ClassMetadata) ([]byte, error) {
	rec := classRecord{
		Version:     codecVersion,
		Name:        meta.Name,
		Found:       meta.Found,
		Abstract:    meta.Abstract,
		Parent:      meta.Parent,
		File:        meta.File,
		ModTime:     meta.ModTime,
		Hash:        meta.SourceHash,
		Sources:     meta.Sources,
		Annotations: encodeAnnotations(meta.Annotations),
	}
	for _, name := range meta.PropertyOrder {
		p := meta.Properties[name]
		rec.Properties = append(rec.Properties, propertyRecord{
			Name:          name,
			Visibility:    p.Visibility,
			Static:        p.Static,
			Accessibility: p.Accessibility,
			Type:          p.Type,
			Annotations:   encodeAnnotations(p.Annotations),
		})
	}
	for _, name := range meta.MethodOrder {
		m := meta.Methods[name]
		rec.Methods = append(rec.Methods, methodRecord{
			Name:        name,
			Visibility:  m.Visibility,
			Static:      m.Static,
			Type:        m.Type,
			Annotations: encodeAnnotations(m.Annotations),
		})
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", meta.Name, err)
	}
	return data, nil
}

// Decode restores a record written by Encode.
func Decode(data []byte) (*model.ClassMetadata, error) {
	var rec classRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if rec.Version != codecVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersion, rec.Version, codecVersion)
	}

	meta := model.NewClassMetadata(rec.Name)
	meta.Found = rec.Found
	meta.Abstract = rec.Abstract
	meta.Parent = rec.Parent
	meta.File = rec.File
	meta.ModTime = rec.ModTime
	meta.SourceHash = rec.Hash
	meta.Sources = rec.Sources
	meta.Annotations = decodeAnnotations(rec.Annotations)
	meta.Built = true

	for _, pr := range rec.Properties {
		p := meta.EnsureProperty(pr.Name)
		p.Visibility = pr.Visibility
		p.Static = pr.Static
		p.Accessibility = pr.Accessibility
		p.Type = pr.Type
		p.Annotations = decodeAnnotations(pr.Annotations)
	}
	for _, mr := range rec.Methods {
		m := meta.EnsureMethod(mr.Name)
		m.Visibility = mr.Visibility
		m.Static = mr.Static
		m.Type = mr.Type
		m.Annotations = decodeAnnotations(mr.Annotations)
	}
	return meta, nil
}

func encodeAnnotations(list []model.Annotation) []annotationRecord {
	if len(list) == 0 {
		return nil
	}
	out := make([]annotationRecord, 0, len(list))
	for _, a := range list {
		switch v := a.(type) {
		case model.Attribute:
			attr := v
			out = append(out, annotationRecord{Attribute: &attr})
		case *model.Attribute:
			attr := *v
			out = append(out, annotationRecord{Attribute: &attr})
		case docblock.Tag:
			rec := docblock.ToRecord(v)
			out = append(out, annotationRecord{Tag: &rec})
		default:
			rec := docblock.Record{Kind: docblock.KindGeneric, Name: a.AnnotationName()}
			out = append(out, annotationRecord{Tag: &rec})
		}
	}
	return out
}

func decodeAnnotations(list []annotationRecord) []model.Annotation {
	if len(list) == 0 {
		return nil
	}
	out := make([]model.Annotation, 0, len(list))
	for _, r := range list {
		switch {
		case r.Attribute != nil:
			out = append(out, *r.Attribute)
		case r.Tag != nil:
			out = append(out, docblock.FromRecord(*r.Tag))
		}
	}
	return out
}

// key is the storage key of a class. Class names are case-insensitive.
func key(className string) string {
	return strings.ToLower(model.NormalizeClassName(className))
}
