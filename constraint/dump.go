package constraint

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// dumpRecord is the serialized form of a joint definition.
type dumpRecord struct {
	Type   string    `yaml:"type"`
	Params yaml.Node `yaml:"params"`
}

// Dump writes the definition that recreates j as a YAML document.
func Dump(j Joint, w io.Writer) error {
	return DumpDef(j.Def(), w)
}

// DumpDef writes def as a YAML document tagged with its joint type.
func DumpDef(def JointDef, w io.Writer) error {
	var rec dumpRecord
	rec.Type = def.JointType().String()
	if err := rec.Params.Encode(def); err != nil {
		return fmt.Errorf("encode %s joint: %w", rec.Type, err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&rec); err != nil {
		return fmt.Errorf("write %s joint: %w", rec.Type, err)
	}
	return enc.Close()
}

// LoadDef reads a definition written by DumpDef and validates it.
func LoadDef(r io.Reader) (JointDef, error) {
	var rec dumpRecord
	if err := yaml.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("read joint: %w", err)
	}

	def := newDef(rec.Type)
	if def == nil {
		return nil, fmt.Errorf("joint type %q: %w", rec.Type, ErrInvalidDef)
	}
	if err := rec.Params.Decode(def); err != nil {
		return nil, fmt.Errorf("decode %s joint: %w", rec.Type, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func newDef(name string) JointDef {
	switch name {
	case JointRevolute.String():
		return &RevoluteJointDef{}
	case JointPrismatic.String():
		return NewPrismaticJointDef()
	case JointDistance.String():
		return NewDistanceJointDef()
	case JointPulley.String():
		return &PulleyJointDef{}
	case JointMouse.String():
		return &MouseJointDef{}
	case JointGear.String():
		return &GearJointDef{}
	case JointWheel.String():
		return NewWheelJointDef()
	case JointWeld.String():
		return &WeldJointDef{}
	case JointFriction.String():
		return &FrictionJointDef{}
	case JointRope.String():
		return NewRopeJointDef()
	case JointMotor.String():
		return NewMotorJointDef()
	default:
		return nil
	}
}
