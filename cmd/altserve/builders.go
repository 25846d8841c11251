// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"

	altium "github.com/saferwall/altium"
)

// The argument shapes below mirror the tool schema: millimetre floats for
// board geometry, schematic units for symbols, names for layers and
// shapes.

type padArg struct {
	Designator          string  `json:"designator"`
	XMm                 float64 `json:"x_mm"`
	YMm                 float64 `json:"y_mm"`
	WidthMm             float64 `json:"width_mm"`
	HeightMm            float64 `json:"height_mm"`
	Shape               string  `json:"shape,omitempty"`
	Layer               string  `json:"layer,omitempty"`
	Rotation            float64 `json:"rotation,omitempty"`
	HoleMm              float64 `json:"hole_mm,omitempty"`
	HoleShape           string  `json:"hole_shape,omitempty"`
	Plated              *bool   `json:"plated,omitempty"`
	CornerRadiusPercent int     `json:"corner_radius_percent,omitempty"`
}

type trackArg struct {
	X1Mm    float64 `json:"x1_mm"`
	Y1Mm    float64 `json:"y1_mm"`
	X2Mm    float64 `json:"x2_mm"`
	Y2Mm    float64 `json:"y2_mm"`
	WidthMm float64 `json:"width_mm"`
	Layer   string  `json:"layer,omitempty"`
}

type arcArg struct {
	XMm        float64 `json:"x_mm"`
	YMm        float64 `json:"y_mm"`
	RadiusMm   float64 `json:"radius_mm"`
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
	WidthMm    float64 `json:"width_mm"`
	Layer      string  `json:"layer,omitempty"`
}

type textArg struct {
	XMm      float64 `json:"x_mm"`
	YMm      float64 `json:"y_mm"`
	HeightMm float64 `json:"height_mm"`
	Text     string  `json:"text"`
	Layer    string  `json:"layer,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`
	Font     string  `json:"font,omitempty"`
}

type fillArg struct {
	X1Mm     float64 `json:"x1_mm"`
	Y1Mm     float64 `json:"y1_mm"`
	X2Mm     float64 `json:"x2_mm"`
	Y2Mm     float64 `json:"y2_mm"`
	Rotation float64 `json:"rotation,omitempty"`
	Layer    string  `json:"layer,omitempty"`
}

type vertexArg struct {
	XMm      float64 `json:"x_mm"`
	YMm      float64 `json:"y_mm"`
	ArcAngle float64 `json:"arc_angle,omitempty"`
}

type regionArg struct {
	Layer    string      `json:"layer,omitempty"`
	Kind     int         `json:"kind,omitempty"`
	Vertices []vertexArg `json:"vertices"`
}

type footprintArg struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Pads        []padArg    `json:"pads,omitempty"`
	Tracks      []trackArg  `json:"tracks,omitempty"`
	Arcs        []arcArg    `json:"arcs,omitempty"`
	Texts       []textArg   `json:"texts,omitempty"`
	Fills       []fillArg   `json:"fills,omitempty"`
	Regions     []regionArg `json:"regions,omitempty"`
}

// checkMm rejects dimensions that would overflow the fixed-point
// coordinate range before they reach the encoder.
func checkMm(vals ...float64) error {
	for _, v := range vals {
		if _, err := altium.CoordFromMm(v); err != nil {
			return &altium.OpError{Kind: altium.KindEncode,
				Msg: fmt.Sprintf("dimension %v mm overflows the coordinate range", v),
				Err: err}
		}
	}
	return nil
}

func parseLayerArg(name, fallback string) (altium.Layer, error) {
	if name == "" {
		name = fallback
	}
	layer := altium.ParseLayer(name)
	if layer == altium.LayerUnknown {
		return 0, invalidParams(fmt.Errorf("unknown layer %q", name))
	}
	return layer, nil
}

func buildFootprint(a footprintArg) (*altium.Component, error) {
	if a.Name == "" {
		return nil, invalidParams(fmt.Errorf("footprint name is required"))
	}
	fp := &altium.Footprint{}

	for _, pa := range a.Pads {
		if err := checkMm(pa.XMm, pa.YMm, pa.WidthMm, pa.HeightMm, pa.HoleMm); err != nil {
			return nil, err
		}
		layer, err := parseLayerArg(pa.Layer, "TopLayer")
		if err != nil {
			return nil, err
		}
		shape := altium.PadShapeRect
		radius := pa.CornerRadiusPercent
		if pa.Shape != "" {
			var ok bool
			if shape, ok = altium.ParsePadShape(pa.Shape); !ok {
				return nil, invalidParams(fmt.Errorf("unknown pad shape %q", pa.Shape))
			}
			// A rounded rectangle is the round shape id with a partial
			// radius; default the rounding when the caller names the shape
			// but gives no percentage.
			lower := strings.ToLower(pa.Shape)
			if (lower == "rounded_rectangle" || lower == "roundedrectangle") && radius == 0 {
				radius = 50
			}
		}
		if radius < 0 || radius > 100 {
			return nil, invalidParams(fmt.Errorf("corner radius %d out of range", radius))
		}
		w := altium.MmToCoord(pa.WidthMm)
		h := altium.MmToCoord(pa.HeightMm)
		pad := &altium.Pad{
			Designator: pa.Designator,
			Layer:      layer,
			X:          altium.MmToCoord(pa.XMm),
			Y:          altium.MmToCoord(pa.YMm),
			TopXSize:   w, TopYSize: h,
			MidXSize: w, MidYSize: h,
			BotXSize: w, BotYSize: h,
			TopShape: shape, MidShape: shape, BotShape: shape,
			Rotation: pa.Rotation,
			Plated:   pa.Plated == nil || *pa.Plated,
			HoleSize: altium.MmToCoord(pa.HoleMm),
			UniqueID: altium.NewUniqueID(),
		}
		switch strings.ToLower(pa.HoleShape) {
		case "", "round":
			pad.HoleShape = altium.HoleRound
		case "square":
			pad.HoleShape = altium.HoleSquare
		case "slot":
			pad.HoleShape = altium.HoleSlot
		default:
			return nil, invalidParams(fmt.Errorf("unknown hole shape %q", pa.HoleShape))
		}
		if pad.HoleSize > 0 {
			pad.Layer = altium.LayerMulti
		}
		for i := 0; i < 32; i++ {
			pad.XSizeByLayer[i], pad.YSizeByLayer[i] = w, h
			pad.ShapeByLayer[i] = shape
		}
		if radius > 0 {
			pad.SetCornerRadiusPercent(uint8(radius))
		}
		fp.Pads = append(fp.Pads, pad)
	}

	for _, ta := range a.Tracks {
		if err := checkMm(ta.X1Mm, ta.Y1Mm, ta.X2Mm, ta.Y2Mm, ta.WidthMm); err != nil {
			return nil, err
		}
		layer, err := parseLayerArg(ta.Layer, "TopOverlay")
		if err != nil {
			return nil, err
		}
		fp.Tracks = append(fp.Tracks, &altium.Track{
			Layer: layer,
			X1:    altium.MmToCoord(ta.X1Mm), Y1: altium.MmToCoord(ta.Y1Mm),
			X2: altium.MmToCoord(ta.X2Mm), Y2: altium.MmToCoord(ta.Y2Mm),
			Width:    altium.MmToCoord(ta.WidthMm),
			UniqueID: altium.NewUniqueID(),
		})
	}

	for _, aa := range a.Arcs {
		layer, err := parseLayerArg(aa.Layer, "TopOverlay")
		if err != nil {
			return nil, err
		}
		fp.Arcs = append(fp.Arcs, &altium.Arc{
			Layer: layer,
			X:     altium.MmToCoord(aa.XMm), Y: altium.MmToCoord(aa.YMm),
			Radius:     altium.MmToCoord(aa.RadiusMm),
			StartAngle: aa.StartAngle, EndAngle: aa.EndAngle,
			Width:    altium.MmToCoord(aa.WidthMm),
			UniqueID: altium.NewUniqueID(),
		})
	}

	for _, ta := range a.Texts {
		layer, err := parseLayerArg(ta.Layer, "TopOverlay")
		if err != nil {
			return nil, err
		}
		font := ta.Font
		if font == "" {
			font = "Default"
		}
		fp.Texts = append(fp.Texts, &altium.Text{
			Layer: layer,
			X:     altium.MmToCoord(ta.XMm), Y: altium.MmToCoord(ta.YMm),
			Height:   altium.MmToCoord(ta.HeightMm),
			Rotation: ta.Rotation,
			FontName: font,
			Text:     ta.Text,
			UniqueID: altium.NewUniqueID(),
		})
	}

	for _, fa := range a.Fills {
		layer, err := parseLayerArg(fa.Layer, "TopLayer")
		if err != nil {
			return nil, err
		}
		fp.Fills = append(fp.Fills, &altium.Fill{
			Layer: layer,
			X1:    altium.MmToCoord(fa.X1Mm), Y1: altium.MmToCoord(fa.Y1Mm),
			X2: altium.MmToCoord(fa.X2Mm), Y2: altium.MmToCoord(fa.Y2Mm),
			Rotation: fa.Rotation,
			UniqueID: altium.NewUniqueID(),
		})
	}

	for _, ra := range a.Regions {
		layer, err := parseLayerArg(ra.Layer, "TopLayer")
		if err != nil {
			return nil, err
		}
		region := &altium.Region{
			Layer:      layer,
			Parameters: &altium.ParameterList{},
			UniqueID:   altium.NewUniqueID(),
		}
		region.Parameters.Set("LAYER", layer.String())
		region.Parameters.Set("KIND", fmt.Sprintf("%d", ra.Kind))
		for _, v := range ra.Vertices {
			region.Vertices = append(region.Vertices, altium.RegionVertex{
				X:        float64(altium.MmToCoord(v.XMm)),
				Y:        float64(altium.MmToCoord(v.YMm)),
				ArcAngle: v.ArcAngle,
			})
		}
		fp.Regions = append(fp.Regions, region)
	}

	return &altium.Component{
		Name:        a.Name,
		Description: a.Description,
		Footprint:   fp,
	}, nil
}

type pinArg struct {
	Designator     string `json:"designator"`
	Name           string `json:"name,omitempty"`
	X              int    `json:"x"`
	Y              int    `json:"y"`
	Length         int    `json:"length"`
	Orientation    string `json:"orientation,omitempty"`
	ElectricalType string `json:"electrical_type,omitempty"`
	Hidden         bool   `json:"hidden,omitempty"`
	ShowName       *bool  `json:"show_name,omitempty"`
	ShowDesignator *bool  `json:"show_designator,omitempty"`
	OwnerPartID    *int   `json:"owner_part_id,omitempty"`
	Description    string `json:"description,omitempty"`
}

type schRectArg struct {
	X1        int  `json:"x1"`
	Y1        int  `json:"y1"`
	X2        int  `json:"x2"`
	Y2        int  `json:"y2"`
	LineWidth int  `json:"line_width,omitempty"`
	Solid     *bool `json:"solid,omitempty"`
}

type schLineArg struct {
	X1        int `json:"x1"`
	Y1        int `json:"y1"`
	X2        int `json:"x2"`
	Y2        int `json:"y2"`
	LineWidth int `json:"line_width,omitempty"`
}

type schPointArg struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type schPolyArg struct {
	Points    []schPointArg `json:"points"`
	LineWidth int           `json:"line_width,omitempty"`
	Solid     *bool         `json:"solid,omitempty"`
}

type schArcArg struct {
	X               int     `json:"x"`
	Y               int     `json:"y"`
	Radius          float64 `json:"radius"`
	SecondaryRadius float64 `json:"secondary_radius,omitempty"`
	StartAngle      float64 `json:"start_angle"`
	EndAngle        float64 `json:"end_angle"`
	LineWidth       int     `json:"line_width,omitempty"`
}

type schLabelArg struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Text   string `json:"text"`
	FontID int    `json:"font_id,omitempty"`
}

type paramArg struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Hidden bool   `json:"hidden,omitempty"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
}

type symbolArg struct {
	Name             string        `json:"name"`
	Description      string        `json:"description,omitempty"`
	DesignatorPrefix string        `json:"designator_prefix,omitempty"`
	PartCount        int           `json:"part_count,omitempty"`
	Pins             []pinArg      `json:"pins,omitempty"`
	Rectangles       []schRectArg  `json:"rectangles,omitempty"`
	Lines            []schLineArg  `json:"lines,omitempty"`
	Polylines        []schPolyArg  `json:"polylines,omitempty"`
	Polygons         []schPolyArg  `json:"polygons,omitempty"`
	Arcs             []schArcArg   `json:"arcs,omitempty"`
	Beziers          []schPolyArg  `json:"beziers,omitempty"`
	Ellipses         []schArcArg   `json:"ellipses,omitempty"`
	Labels           []schLabelArg `json:"labels,omitempty"`
	Parameters       []paramArg    `json:"parameters,omitempty"`
	FootprintLinks   []string      `json:"footprint_links,omitempty"`
}

func parseElectricalType(s string) (altium.PinElectricalType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "passive":
		return altium.PinPassive, nil
	case "input":
		return altium.PinInput, nil
	case "io", "bidirectional":
		return altium.PinIO, nil
	case "output":
		return altium.PinOutput, nil
	case "open_collector", "opencollector":
		return altium.PinOpenCollector, nil
	case "hiz", "tristate":
		return altium.PinHiZ, nil
	case "open_emitter", "openemitter":
		return altium.PinOpenEmitter, nil
	case "power":
		return altium.PinPower, nil
	}
	return 0, invalidParams(fmt.Errorf("unknown electrical type %q", s))
}

func parseOrientation(s string) (altium.PinOrientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "right":
		return altium.PinRight, nil
	case "left":
		return altium.PinLeft, nil
	case "up":
		return altium.PinUp, nil
	case "down":
		return altium.PinDown, nil
	}
	return 0, invalidParams(fmt.Errorf("unknown orientation %q", s))
}

func buildSymbol(a symbolArg) (*altium.Component, error) {
	if a.Name == "" {
		return nil, invalidParams(fmt.Errorf("symbol name is required"))
	}
	sym := &altium.Symbol{
		DesignatorPrefix: a.DesignatorPrefix,
		PartCount:        a.PartCount,
		DisplayModeCount: 1,
	}
	if sym.PartCount < 1 {
		sym.PartCount = 1
	}

	for _, pa := range a.Pins {
		pin := altium.NewPin()
		pin.Designator = pa.Designator
		pin.Name = pa.Name
		pin.X = int16(pa.X)
		pin.Y = int16(pa.Y)
		pin.Length = int16(pa.Length)
		pin.Hidden = pa.Hidden
		pin.Description = pa.Description
		et, err := parseElectricalType(pa.ElectricalType)
		if err != nil {
			return nil, err
		}
		pin.ElectricalType = et
		o, err := parseOrientation(pa.Orientation)
		if err != nil {
			return nil, err
		}
		pin.SetOrientation(o)
		if pa.ShowName != nil {
			pin.ShowName = *pa.ShowName
		}
		if pa.ShowDesignator != nil {
			pin.ShowDesignator = *pa.ShowDesignator
		}
		if pa.OwnerPartID != nil {
			pin.OwnerPartID = int16(*pa.OwnerPartID)
		}
		sym.Pins = append(sym.Pins, pin)
	}

	for _, r := range a.Rectangles {
		sym.Rectangles = append(sym.Rectangles, &altium.SchRectangle{
			OwnerPartID: -1,
			X1:          r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2,
			LineWidth: r.LineWidth,
			IsSolid:   r.Solid == nil || *r.Solid,
			AreaColor: 0xB0FFFF,
			Color:     0x000080,
		})
	}
	for _, ln := range a.Lines {
		sym.Lines = append(sym.Lines, &altium.SchLine{
			OwnerPartID: -1,
			X1:          ln.X1, Y1: ln.Y1, X2: ln.X2, Y2: ln.Y2,
			LineWidth: ln.LineWidth,
		})
	}
	for _, p := range a.Polylines {
		sym.Polylines = append(sym.Polylines, &altium.SchPolyline{
			OwnerPartID: -1,
			Points:      toPoints(p.Points),
			LineWidth:   p.LineWidth,
		})
	}
	for _, p := range a.Polygons {
		if len(p.Points) < 3 {
			return nil, invalidParams(fmt.Errorf("polygon needs at least 3 points"))
		}
		sym.Polygons = append(sym.Polygons, &altium.SchPolygon{
			OwnerPartID: -1,
			Points:      toPoints(p.Points),
			LineWidth:   p.LineWidth,
			IsSolid:     p.Solid == nil || *p.Solid,
		})
	}
	for _, ar := range a.Arcs {
		if ar.SecondaryRadius != 0 && ar.SecondaryRadius != ar.Radius {
			sym.EllipticalArcs = append(sym.EllipticalArcs, &altium.SchEllipticalArc{
				OwnerPartID: -1,
				X:           ar.X, Y: ar.Y,
				Radius:          ar.Radius,
				SecondaryRadius: ar.SecondaryRadius,
				StartAngle:      ar.StartAngle, EndAngle: ar.EndAngle,
				LineWidth: ar.LineWidth,
			})
			continue
		}
		sym.Arcs = append(sym.Arcs, &altium.SchArc{
			OwnerPartID: -1,
			X:           ar.X, Y: ar.Y,
			Radius:     int(ar.Radius),
			StartAngle: ar.StartAngle, EndAngle: ar.EndAngle,
			LineWidth: ar.LineWidth,
		})
	}
	for _, b := range a.Beziers {
		if len(b.Points) != 4 {
			return nil, invalidParams(fmt.Errorf("bezier needs exactly 4 control points"))
		}
		sym.Beziers = append(sym.Beziers, &altium.SchBezier{
			OwnerPartID: -1,
			Points:      toPoints(b.Points),
			LineWidth:   b.LineWidth,
		})
	}
	for _, el := range a.Ellipses {
		secondary := int(el.SecondaryRadius)
		if secondary == 0 {
			secondary = int(el.Radius)
		}
		sym.Ellipses = append(sym.Ellipses, &altium.SchEllipse{
			OwnerPartID: -1,
			X:           el.X, Y: el.Y,
			Radius:          int(el.Radius),
			SecondaryRadius: secondary,
			LineWidth:       el.LineWidth,
			IsSolid:         true,
		})
	}
	for _, la := range a.Labels {
		fontID := la.FontID
		if fontID == 0 {
			fontID = 1
		}
		sym.Labels = append(sym.Labels, &altium.SchLabel{
			OwnerPartID: -1,
			X:           la.X, Y: la.Y,
			Text:   la.Text,
			FontID: fontID,
		})
	}
	for _, pa := range a.Parameters {
		sym.Parameters = append(sym.Parameters, &altium.SchParameter{
			Name: pa.Name, Value: pa.Value, Hidden: pa.Hidden, X: pa.X, Y: pa.Y,
		})
	}
	for i, link := range a.FootprintLinks {
		sym.Models = append(sym.Models, &altium.FootprintModel{
			ModelName: link,
			ModelType: "PCBLIB",
			IsCurrent: i == 0,
		})
	}

	return &altium.Component{
		Name:        a.Name,
		Description: a.Description,
		Symbol:      sym,
	}, nil
}

func toPoints(args []schPointArg) []altium.SchPoint {
	out := make([]altium.SchPoint, len(args))
	for i, p := range args {
		out[i] = altium.SchPoint{X: p.X, Y: p.Y}
	}
	return out
}
