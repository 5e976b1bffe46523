// Package overlay intersects block groups with districts using GEOS.
package overlay

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/model"
)

// ErrTopology is returned when GEOS rejects an operation even after the
// inputs were repaired with MakeValid.
var ErrTopology = eris.New("overlay: topology error")

// Engine runs geometric operations on a private GEOS context.
// An Engine is not safe for concurrent use.
type Engine struct {
	ctx *geos.Context
	log *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine() *Engine {
	return &Engine{
		ctx: geos.NewContext(),
		log: zap.L().With(zap.String("component", "overlay")),
	}
}

// toGEOS converts a go-geom geometry to a GEOS geometry.
func (e *Engine) toGEOS(g geom.T) (*geos.Geom, error) {
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "overlay: encode wkb")
	}
	gg, err := e.ctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, eris.Wrap(err, "overlay: decode wkb in geos")
	}
	return gg, nil
}

// fromGEOS returns the polygonal part of a GEOS geometry, or nil if it has
// none (empty results, points and lines from boundary touches).
func fromGEOS(gg *geos.Geom) (*geom.MultiPolygon, error) {
	if gg == nil || gg.IsEmpty() {
		return nil, nil
	}
	g, err := wkb.Unmarshal(gg.ToWKB())
	if err != nil {
		return nil, eris.Wrap(err, "overlay: decode geos result")
	}
	return model.AsMultiPolygon(g), nil
}

// guard runs op, turning a GEOS panic into an error.
func guard(op string, fn func() *geos.Geom) (g *geos.Geom, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Wrapf(ErrTopology, "%s: %s", op, fmt.Sprint(r))
		}
	}()
	return fn(), nil
}

// binary applies op to a and b. If GEOS fails, both inputs are repaired
// with MakeValid and the operation is tried once more.
func (e *Engine) binary(name string, a, b *geos.Geom, op func(x, y *geos.Geom) *geos.Geom) (*geos.Geom, error) {
	out, err := guard(name, func() *geos.Geom { return op(a, b) })
	if err == nil {
		return out, nil
	}

	e.log.Debug("geos operation failed, retrying with repaired inputs",
		zap.String("op", name),
		zap.Error(err),
	)

	va, verr := guard("make_valid", a.MakeValid)
	if verr != nil {
		return nil, err
	}
	vb, verr := guard("make_valid", b.MakeValid)
	if verr != nil {
		return nil, err
	}
	return guard(name, func() *geos.Geom { return op(va, vb) })
}

// Intersection returns the polygonal intersection of a and b, or nil when
// they share no area.
func (e *Engine) Intersection(a, b *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	ga, err := e.toGEOS(a)
	if err != nil {
		return nil, err
	}
	gb, err := e.toGEOS(b)
	if err != nil {
		return nil, err
	}
	out, err := e.binary("intersection", ga, gb, (*geos.Geom).Intersection)
	if err != nil {
		return nil, err
	}
	return fromGEOS(out)
}

// Union merges polygons into one MultiPolygon. Overlapping and adjacent
// parts are dissolved into single polygons.
func (e *Engine) Union(parts []*geom.MultiPolygon) (*geom.MultiPolygon, error) {
	var acc *geos.Geom
	for _, p := range parts {
		if p == nil || p.Empty() {
			continue
		}
		gp, err := e.toGEOS(p)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = gp
			continue
		}
		acc, err = e.binary("union", acc, gp, (*geos.Geom).Union)
		if err != nil {
			return nil, err
		}
	}
	if acc == nil {
		return nil, nil
	}

	// A single input may still carry overlapping parts of its own.
	merged, err := guard("unary_union", acc.UnaryUnion)
	if err != nil {
		return nil, err
	}
	return fromGEOS(merged)
}
