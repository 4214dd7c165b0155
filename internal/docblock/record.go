package docblock

import (
	"fmt"
)

// Record is the flat, serializable form of a Tag. Fields that do not apply
// to a tag's Kind are left empty.
type Record struct {
	Kind        Kind     `json:"kind"`
	Name        string   `json:"name"`
	Body        string   `json:"body,omitempty"`
	Location    Location `json:"location"`
	Type        string   `json:"type,omitempty"`
	Variable    string   `json:"variable,omitempty"`
	MethodName  string   `json:"method,omitempty"`
	Arguments   string   `json:"arguments,omitempty"`
	Static      bool     `json:"static,omitempty"`
	Description string   `json:"description,omitempty"`
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown tag kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("unknown tag kind %q", text)
	}
	*k = parsed
	return nil
}

// ToRecord flattens t. Tags of types outside this package keep their Kind,
// name, body and location only.
func ToRecord(t Tag) Record {
	r := Record{
		Kind:     t.Kind(),
		Name:     t.Name(),
		Body:     t.Body(),
		Location: t.Location(),
	}
	switch v := t.(type) {
	case *VarTag:
		r.Type, r.Variable, r.Description = v.Type, v.Variable, v.Description
	case *PropertyTag:
		r.Type, r.Variable, r.Description = v.Type, v.Variable, v.Description
	case *PropertyReadTag:
		r.Type, r.Variable, r.Description = v.Type, v.Variable, v.Description
	case *PropertyWriteTag:
		r.Type, r.Variable, r.Description = v.Type, v.Variable, v.Description
	case *MethodTag:
		r.MethodName, r.Type, r.Static = v.MethodName, v.Type, v.Static
		r.Arguments, r.Description = v.Arguments, v.Description
	case *ReturnTag:
		r.Type, r.Description = v.Type, v.Description
	default:
		// Foreign implementations cannot be rebuilt faithfully.
		r.Kind = KindGeneric
	}
	return r
}

// FromRecord rebuilds the builtin tag for r without re-resolving types.
func FromRecord(r Record) Tag {
	b := base{name: r.Name, body: r.Body, loc: r.Location}
	switch r.Kind {
	case KindVar:
		return &VarTag{base: b, Type: r.Type, Variable: r.Variable, Description: r.Description}
	case KindProperty:
		return &PropertyTag{base: b, Type: r.Type, Variable: r.Variable, Description: r.Description}
	case KindPropertyRead:
		return &PropertyReadTag{PropertyTag{base: b, Type: r.Type, Variable: r.Variable, Description: r.Description}}
	case KindPropertyWrite:
		return &PropertyWriteTag{PropertyTag{base: b, Type: r.Type, Variable: r.Variable, Description: r.Description}}
	case KindMethod:
		return &MethodTag{
			base:        b,
			MethodName:  r.MethodName,
			Type:        r.Type,
			Static:      r.Static,
			Arguments:   r.Arguments,
			Description: r.Description,
		}
	case KindReturn:
		return &ReturnTag{base: b, Type: r.Type, Description: r.Description}
	case KindGeneric:
		return &GenericTag{b}
	}
	return &GenericTag{b}
}
