package feather2d

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/akmonengine/feather2d/constraint"
	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/internal/pool"
	"github.com/go-gl/mathgl/mgl64"
)

// JointID is a generation-checked handle to a joint of a World.
type JointID pool.Handle

func (id JointID) IsNil() bool    { return pool.Handle(id).IsNil() }
func (id JointID) String() string { return pool.Handle(id).String() }

// JointDef holds the data to construct a joint.
//
// Params selects the joint type. A gear joint takes its bodies from the
// driving joints Joint1 and Joint2 and ignores BodyA and BodyB.
type JointDef struct {
	BodyA BodyID
	BodyB BodyID

	// CollideConnected lets the attached bodies collide.
	CollideConnected bool

	Params constraint.JointDef

	Joint1 JointID
	Joint2 JointID

	UserData any
}

// jointRecord links a solver joint to the world bodies it constrains.
type jointRecord struct {
	id    JointID
	joint constraint.Joint

	bodyA *Body
	bodyB *Body
	// bodies C and D of a gear joint, nil otherwise
	bodyC *Body
	bodyD *Body

	// positions in the joint lists of body A and body B
	edgeA int
	edgeB int

	island bool

	UserData any
}

func (j *jointRecord) setEdge(b *Body, i int) {
	if b == j.bodyA {
		j.edgeA = i
	} else {
		j.edgeB = i
	}
}

func (j *jointRecord) edge(b *Body) int {
	if b == j.bodyA {
		return j.edgeA
	}
	return j.edgeB
}

func (j *jointRecord) other(b *Body) *Body {
	if b == j.bodyA {
		return j.bodyB
	}
	return j.bodyA
}

func (j *jointRecord) wake() {
	j.bodyA.SetAwake(true)
	j.bodyB.SetAwake(true)
}

func bodyRef(b *Body) constraint.BodyRef {
	return constraint.BodyRef{
		Index:       b.islandIndex,
		LocalCenter: b.sweep.LocalCenter,
		InvMass:     b.invMass,
		InvI:        b.invI,
	}
}

// bind hands the island indices of the bodies to the solver joint.
func (j *jointRecord) bind() {
	j.joint.SetBodies(bodyRef(j.bodyA), bodyRef(j.bodyB))
	if gear, ok := j.joint.(*constraint.GearJoint); ok {
		gear.SetCarriers(bodyRef(j.bodyC), bodyRef(j.bodyD))
	}
}

// CreateJoint creates a joint between two bodies. The bodies are woken up and,
// unless CollideConnected is set, their contacts are flagged for filtering.
func (w *World) CreateJoint(def JointDef) (JointID, error) {
	if err := w.checkUnlocked("CreateJoint"); err != nil {
		return JointID{}, err
	}
	if def.Params == nil {
		return JointID{}, fmt.Errorf("joint without parameters: %w", ErrInvalidJointDef)
	}
	if err := def.Params.Validate(); err != nil {
		return JointID{}, fmt.Errorf("%w: %w", ErrInvalidJointDef, err)
	}

	rec := &jointRecord{UserData: def.UserData}

	if gearDef, ok := def.Params.(*constraint.GearJointDef); ok {
		joint1 := w.joints.Get(pool.Handle(def.Joint1))
		joint2 := w.joints.Get(pool.Handle(def.Joint2))
		if joint1 == nil || joint2 == nil {
			w.logger.Warn("gear joint with stale driving joint",
				slog.String("joint1", def.Joint1.String()),
				slog.String("joint2", def.Joint2.String()))
			return JointID{}, fmt.Errorf("gear driving joint: %w", ErrInvalidJoint)
		}

		rec.bodyA, rec.bodyC = joint1.bodyB, joint1.bodyA
		rec.bodyB, rec.bodyD = joint2.bodyB, joint2.bodyA
		if rec.bodyA == rec.bodyB {
			return JointID{}, fmt.Errorf("gear joint: %w", ErrSameBody)
		}

		gear, err := constraint.NewGearJoint(gearDef, joint1.joint, joint2.joint,
			rec.bodyA.xf, rec.bodyB.xf, rec.bodyC.xf, rec.bodyD.xf, def.CollideConnected)
		if err != nil {
			return JointID{}, fmt.Errorf("%w: %w", ErrInvalidJointDef, err)
		}
		rec.joint = gear
	} else {
		bodyA, err := w.body(def.BodyA, "CreateJoint")
		if err != nil {
			return JointID{}, err
		}
		bodyB, err := w.body(def.BodyB, "CreateJoint")
		if err != nil {
			return JointID{}, err
		}
		if bodyA == bodyB {
			return JointID{}, fmt.Errorf("joint on body %v: %w", def.BodyA, ErrSameBody)
		}

		rec.bodyA, rec.bodyB = bodyA, bodyB
		rec.joint, err = newJoint(def.Params, bodyB.xf, def.CollideConnected)
		if err != nil {
			return JointID{}, err
		}
	}

	if waker, ok := rec.joint.(interface{ SetWake(func()) }); ok {
		waker.SetWake(rec.wake)
	}

	rec.id = JointID(w.joints.Add(rec))

	// Link the joint into the adjacency lists of both bodies.
	rec.bodyA.addJoint(rec)
	rec.bodyB.addJoint(rec)

	// If the joint prevents collisions, then flag any contacts for filtering.
	if !def.CollideConnected {
		for c := range rec.bodyB.contactEdges() {
			if c.other(rec.bodyB) == rec.bodyA {
				c.flagForFiltering()
			}
		}
	}

	rec.wake()

	return rec.id, nil
}

func newJoint(params constraint.JointDef, xfB geom.Transform, collideConnected bool) (constraint.Joint, error) {
	switch p := params.(type) {
	case *constraint.DistanceJointDef:
		return constraint.NewDistanceJoint(p, collideConnected), nil
	case *constraint.RevoluteJointDef:
		return constraint.NewRevoluteJoint(p, collideConnected), nil
	case *constraint.PrismaticJointDef:
		return constraint.NewPrismaticJoint(p, collideConnected), nil
	case *constraint.PulleyJointDef:
		return constraint.NewPulleyJoint(p, collideConnected), nil
	case *constraint.WeldJointDef:
		return constraint.NewWeldJoint(p, collideConnected), nil
	case *constraint.FrictionJointDef:
		return constraint.NewFrictionJoint(p, collideConnected), nil
	case *constraint.WheelJointDef:
		return constraint.NewWheelJoint(p, collideConnected), nil
	case *constraint.MotorJointDef:
		return constraint.NewMotorJoint(p, collideConnected), nil
	case *constraint.RopeJointDef:
		return constraint.NewRopeJoint(p, collideConnected), nil
	case *constraint.MouseJointDef:
		return constraint.NewMouseJoint(p, xfB, collideConnected), nil
	}
	return nil, fmt.Errorf("joint type %v: %w", params.JointType(), ErrInvalidJointDef)
}

// DestroyJoint destroys a joint and the gear joints it drives. The attached
// bodies are woken up.
func (w *World) DestroyJoint(id JointID) error {
	if err := w.checkUnlocked("DestroyJoint"); err != nil {
		return err
	}
	rec := w.joints.Get(pool.Handle(id))
	if rec == nil {
		w.logger.Warn("stale joint", slog.String("joint", id.String()))
		return fmt.Errorf("joint %v: %w", id, ErrInvalidJoint)
	}

	w.destroyJoint(rec)
	return nil
}

func (w *World) destroyJoint(rec *jointRecord) {
	for _, gear := range w.gearsDrivenBy(rec) {
		if w.destructionListener != nil {
			w.destructionListener.SayGoodbyeJoint(gear.id)
		}
		w.destroyJoint(gear)
	}

	collideConnected := rec.joint.CollideConnected()

	rec.bodyA.removeJoint(rec)
	rec.bodyB.removeJoint(rec)
	w.joints.Remove(pool.Handle(rec.id))

	rec.wake()

	// If the joint prevents collisions, then flag any contacts for filtering.
	if !collideConnected {
		for c := range rec.bodyB.contactEdges() {
			if c.other(rec.bodyB) == rec.bodyA {
				c.flagForFiltering()
			}
		}
	}
}

// gearsDrivenBy lists the live gear joints that use rec as a driving joint.
func (w *World) gearsDrivenBy(rec *jointRecord) []*jointRecord {
	var gears []*jointRecord
	w.joints.All(func(_ pool.Handle, other *jointRecord) bool {
		gear, ok := other.joint.(*constraint.GearJoint)
		if !ok {
			return true
		}
		joint1, joint2 := gear.Joints()
		if joint1 == rec.joint || joint2 == rec.joint {
			gears = append(gears, other)
		}
		return true
	})
	return gears
}

// Joint returns the solver joint of id, or nil when id is stale. Assert it to
// its concrete type to reach the motor, limit and spring settings.
func (w *World) Joint(id JointID) constraint.Joint {
	rec := w.joints.Get(pool.Handle(id))
	if rec == nil {
		return nil
	}
	return rec.joint
}

// JointBodies returns the bodies constrained by a joint.
func (w *World) JointBodies(id JointID) (BodyID, BodyID, error) {
	rec := w.joints.Get(pool.Handle(id))
	if rec == nil {
		return BodyID{}, BodyID{}, fmt.Errorf("joint %v: %w", id, ErrInvalidJoint)
	}
	return rec.bodyA.id, rec.bodyB.id, nil
}

// JointAnchors returns the world anchors of a joint on body A and body B.
func (w *World) JointAnchors(id JointID) (mgl64.Vec2, mgl64.Vec2, error) {
	rec := w.joints.Get(pool.Handle(id))
	if rec == nil {
		return mgl64.Vec2{}, mgl64.Vec2{}, fmt.Errorf("joint %v: %w", id, ErrInvalidJoint)
	}
	return rec.joint.AnchorA(rec.bodyA.xf), rec.joint.AnchorB(rec.bodyB.xf), nil
}

// JointUserData returns the user data given at creation.
func (w *World) JointUserData(id JointID) any {
	rec := w.joints.Get(pool.Handle(id))
	if rec == nil {
		return nil
	}
	return rec.UserData
}

// DumpJoint writes the definition that recreates the joint as YAML.
func (w *World) DumpJoint(id JointID, out io.Writer) error {
	rec := w.joints.Get(pool.Handle(id))
	if rec == nil {
		return fmt.Errorf("joint %v: %w", id, ErrInvalidJoint)
	}
	return constraint.Dump(rec.joint, out)
}

// SetJointCollideConnected changes whether the jointed bodies may collide.
func (w *World) SetJointCollideConnected(id JointID, flag bool) error {
	if err := w.checkUnlocked("SetJointCollideConnected"); err != nil {
		return err
	}
	rec := w.joints.Get(pool.Handle(id))
	if rec == nil {
		return fmt.Errorf("joint %v: %w", id, ErrInvalidJoint)
	}

	setter, ok := rec.joint.(interface{ SetCollideConnected(bool) })
	if !ok {
		return nil
	}
	setter.SetCollideConnected(flag)

	for c := range rec.bodyB.contactEdges() {
		if c.other(rec.bodyB) == rec.bodyA {
			c.flagForFiltering()
		}
	}
	// Joint-connected pairs may have no contact yet.
	for _, f := range rec.bodyA.fixtures {
		f.Refilter()
	}
	return nil
}
