// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"fmt"
	"math"
	"strconv"
)

// Logical record ids carried in the RECORD key of text records.
const (
	schRecordHeader         = 1
	schRecordLabel          = 4
	schRecordBezier         = 5
	schRecordPolyline       = 6
	schRecordPolygon        = 7
	schRecordEllipse        = 8
	schRecordRoundRect      = 10
	schRecordEllipticalArc  = 11
	schRecordArc            = 12
	schRecordLine           = 13
	schRecordRectangle      = 14
	schRecordDesignator     = 34
	schRecordParameter      = 41
	schRecordImplList       = 44
	schRecordModel          = 45
	schRecordModelDatafile1 = 46
	schRecordModelDatafile2 = 47
	schRecordModelDatafile3 = 48
)

// fracScale is the multiplier of the fixed-point fractional radius parts.
// The fractional part clamps to fracScale-1 on write.
const fracScale = 100000

// SchPoint is a vertex in schematic units.
type SchPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// setFixedPoint writes value as integer and fractional keys, the
// fractional part scaled by 100000 and clamped below the scale.
func setFixedPoint(pl *ParameterList, key, fracKey string, v float64) {
	ip, fp := math.Modf(math.Abs(v))
	frac := int(math.Round(fp * fracScale))
	if frac >= fracScale {
		frac = fracScale - 1
	}
	n := int(ip)
	if v < 0 {
		n = -n
	}
	pl.Set(key, strconv.Itoa(n))
	if frac != 0 {
		pl.Set(fracKey, strconv.Itoa(frac))
	}
}

func getFixedPoint(pl *ParameterList, key, fracKey string) float64 {
	n := pl.GetInt(key, 0)
	frac := pl.GetInt(fracKey, 0)
	v := float64(n)
	f := float64(frac) / fracScale
	if n < 0 {
		return v - f
	}
	return v + f
}

func setOwner(pl *ParameterList, ownerPartID int, indexInSheet int) {
	pl.Set("INDEXINSHEET", strconv.Itoa(indexInSheet))
	pl.Set("OWNERPARTID", strconv.Itoa(ownerPartID))
}

// SchParameter is a name/value annotation of a symbol.
type SchParameter struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Hidden bool   `json:"hidden"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

func (p *SchParameter) toParams() *ParameterList {
	pl := &ParameterList{}
	pl.Set("RECORD", strconv.Itoa(schRecordParameter))
	pl.Set("OWNERPARTID", "-1")
	pl.Set("LOCATION.X", strconv.Itoa(p.X))
	pl.Set("LOCATION.Y", strconv.Itoa(p.Y))
	if p.Hidden {
		pl.Set("ISHIDDEN", "T")
	}
	pl.Set("NAME", p.Name)
	pl.Set("TEXT", p.Value)
	return pl
}

func schParameterFrom(pl *ParameterList) *SchParameter {
	return &SchParameter{
		Name:   pl.GetString("NAME", ""),
		Value:  pl.GetString("TEXT", ""),
		Hidden: pl.GetBool("ISHIDDEN", false),
		X:      pl.GetInt("LOCATION.X", 0),
		Y:      pl.GetInt("LOCATION.Y", 0),
	}
}

// SchRectangle is a filled or outlined body rectangle.
type SchRectangle struct {
	OwnerPartID int    `json:"owner_part_id"`
	X1          int    `json:"x1"`
	Y1          int    `json:"y1"`
	X2          int    `json:"x2"`
	Y2          int    `json:"y2"`
	LineWidth   int    `json:"line_width"`
	Color       uint32 `json:"color"`
	AreaColor   uint32 `json:"area_color"`
	IsSolid     bool   `json:"is_solid"`
	Transparent bool   `json:"transparent"`
}

func (s *SchRectangle) toParams(record int, idx int) *ParameterList {
	pl := &ParameterList{}
	pl.Set("RECORD", strconv.Itoa(record))
	setOwner(pl, s.OwnerPartID, idx)
	pl.Set("LOCATION.X", strconv.Itoa(s.X1))
	pl.Set("LOCATION.Y", strconv.Itoa(s.Y1))
	pl.Set("CORNER.X", strconv.Itoa(s.X2))
	pl.Set("CORNER.Y", strconv.Itoa(s.Y2))
	pl.Set("LINEWIDTH", strconv.Itoa(s.LineWidth))
	pl.Set("COLOR", strconv.FormatUint(uint64(s.Color), 10))
	pl.Set("AREACOLOR", strconv.FormatUint(uint64(s.AreaColor), 10))
	pl.Set("ISSOLID", formatBool(s.IsSolid))
	if s.Transparent {
		pl.Set("TRANSPARENT", "T")
	}
	return pl
}

func schRectangleFrom(pl *ParameterList) *SchRectangle {
	return &SchRectangle{
		OwnerPartID: pl.GetInt("OWNERPARTID", -1),
		X1:          pl.GetInt("LOCATION.X", 0),
		Y1:          pl.GetInt("LOCATION.Y", 0),
		X2:          pl.GetInt("CORNER.X", 0),
		Y2:          pl.GetInt("CORNER.Y", 0),
		LineWidth:   pl.GetInt("LINEWIDTH", 0),
		Color:       uint32(pl.GetInt("COLOR", 0)),
		AreaColor:   uint32(pl.GetInt("AREACOLOR", 0)),
		// Rectangles are solid unless the file says otherwise.
		IsSolid:     pl.GetBool("ISSOLID", true),
		Transparent: pl.GetBool("TRANSPARENT", false),
	}
}

// SchRoundRect is a rectangle with rounded corners.
type SchRoundRect struct {
	SchRectangle
	CornerXRadius int `json:"corner_x_radius"`
	CornerYRadius int `json:"corner_y_radius"`
}

func (s *SchRoundRect) toParams(idx int) *ParameterList {
	pl := s.SchRectangle.toParams(schRecordRoundRect, idx)
	pl.Set("CORNERXRADIUS", strconv.Itoa(s.CornerXRadius))
	pl.Set("CORNERYRADIUS", strconv.Itoa(s.CornerYRadius))
	return pl
}

func schRoundRectFrom(pl *ParameterList) *SchRoundRect {
	return &SchRoundRect{
		SchRectangle:  *schRectangleFrom(pl),
		CornerXRadius: pl.GetInt("CORNERXRADIUS", 0),
		CornerYRadius: pl.GetInt("CORNERYRADIUS", 0),
	}
}

// SchLine is a single straight segment.
type SchLine struct {
	OwnerPartID int    `json:"owner_part_id"`
	X1          int    `json:"x1"`
	Y1          int    `json:"y1"`
	X2          int    `json:"x2"`
	Y2          int    `json:"y2"`
	LineWidth   int    `json:"line_width"`
	Color       uint32 `json:"color"`
}

func (s *SchLine) toParams(idx int) *ParameterList {
	pl := &ParameterList{}
	pl.Set("RECORD", strconv.Itoa(schRecordLine))
	setOwner(pl, s.OwnerPartID, idx)
	pl.Set("LOCATION.X", strconv.Itoa(s.X1))
	pl.Set("LOCATION.Y", strconv.Itoa(s.Y1))
	pl.Set("CORNER.X", strconv.Itoa(s.X2))
	pl.Set("CORNER.Y", strconv.Itoa(s.Y2))
	pl.Set("LINEWIDTH", strconv.Itoa(s.LineWidth))
	pl.Set("COLOR", strconv.FormatUint(uint64(s.Color), 10))
	return pl
}

func schLineFrom(pl *ParameterList) *SchLine {
	return &SchLine{
		OwnerPartID: pl.GetInt("OWNERPARTID", -1),
		X1:          pl.GetInt("LOCATION.X", 0),
		Y1:          pl.GetInt("LOCATION.Y", 0),
		X2:          pl.GetInt("CORNER.X", 0),
		Y2:          pl.GetInt("CORNER.Y", 0),
		LineWidth:   pl.GetInt("LINEWIDTH", 0),
		Color:       uint32(pl.GetInt("COLOR", 0)),
	}
}

// SchPolyline is an open multi-segment stroke.
type SchPolyline struct {
	OwnerPartID int        `json:"owner_part_id"`
	Points      []SchPoint `json:"points"`
	LineWidth   int        `json:"line_width"`
	Color       uint32     `json:"color"`
}

func setPoints(pl *ParameterList, pts []SchPoint) {
	pl.Set("LOCATIONCOUNT", strconv.Itoa(len(pts)))
	for i, p := range pts {
		pl.Set(fmt.Sprintf("X%d", i+1), strconv.Itoa(p.X))
		pl.Set(fmt.Sprintf("Y%d", i+1), strconv.Itoa(p.Y))
	}
}

func getPoints(pl *ParameterList) []SchPoint {
	n := pl.GetInt("LOCATIONCOUNT", 0)
	pts := make([]SchPoint, 0, n)
	for i := 1; i <= n; i++ {
		pts = append(pts, SchPoint{
			X: pl.GetInt(fmt.Sprintf("X%d", i), 0),
			Y: pl.GetInt(fmt.Sprintf("Y%d", i), 0),
		})
	}
	return pts
}

func (s *SchPolyline) toParams(idx int) *ParameterList {
	pl := &ParameterList{}
	pl.Set("RECORD", strconv.Itoa(schRecordPolyline))
	setOwner(pl, s.OwnerPartID, idx)
	setPoints(pl, s.Points)
	pl.Set("LINEWIDTH", strconv.Itoa(s.LineWidth))
	pl.Set("COLOR", strconv.FormatUint(uint64(s.Color), 10))
	return pl
}

func schPolylineFrom(pl *ParameterList) *SchPolyline {
	return &SchPolyline{
		OwnerPartID: pl.GetInt("OWNERPARTID", -1),
		Points:      getPoints(pl),
		LineWidth:   pl.GetInt("LINEWIDTH", 0),
		Color:       uint32(pl.GetInt("COLOR", 0)),
	}
}

// SchPolygon is a closed filled outline. Three vertices minimum.
type SchPolygon struct {
	OwnerPartID int        `json:"owner_part_id"`
	Points      []SchPoint `json:"points"`
	LineWidth   int        `json:"line_width"`
	Color       uint32     `json:"color"`
	AreaColor   uint32     `json:"area_color"`
	IsSolid     bool       `json:"is_solid"`
}

func (s *SchPolygon) toParams(idx int) *ParameterList {
	pl := &ParameterList{}
	pl.Set("RECORD", strconv.Itoa(schRecordPolygon))
	setOwner(pl, s.OwnerPartID, idx)
	setPoints(pl, s.Points)
	pl.Set("LINEWIDTH", strconv.Itoa(s.LineWidth))
	pl.Set("COLOR", strconv.FormatUint(uint64(s.Color), 10))
	pl.Set("AREACOLOR", strconv.FormatUint(uint64(s.AreaColor), 10))
	pl.Set("ISSOLID", formatBool(s.IsSolid))
	return pl
}

func schPolygonFrom(pl *ParameterList) *SchPolygon {
	return &SchPolygon{
		OwnerPartID: pl.GetInt("OWNERPARTID", -1),
		Points:      getPoints(pl),
		LineWidth:   pl.GetInt("LINEWIDTH", 0),
		Color:       uint32(pl.GetInt("COLOR", 0)),
		AreaColor:   uint32(pl.GetInt("AREACOLOR", 0)),
		IsSolid:     pl.GetBool("ISSOLID", true),
	}
}

// SchArc is a circular arc stroke.
type SchArc struct {
	OwnerPartID int     `json:"owner_part_id"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Radius      int     `json:"radius"`
	StartAngle  float64 `json:"start_angle"`
	EndAngle    float64 `json:"end_angle"`
	LineWidth   int     `json:"line_width"`
	Color       uint32  `json:"color"`
}

func (s *SchArc) toParams(idx int) *ParameterList {
	pl := &ParameterList{}
	pl.Set("RECORD", strconv.Itoa(schRecordArc))
	setOwner(pl, s.OwnerPartID, idx)
	pl.Set("LOCATION.X", strconv.Itoa(s.X))
	pl.Set("LOCATION.Y", strconv.Itoa(s.Y))
	pl.Set("RADIUS", strconv.Itoa(s.Radius))
	pl.Set("STARTANGLE", formatFloat(s.StartAngle))
	pl.Set("ENDANGLE", formatFloat(s.EndAngle))
	pl.Set("LINEWIDTH", strconv.Itoa(s.LineWidth))
	pl.Set("COLOR", strconv.FormatUint(uint64(s.Color), 10))
	return pl
}

func schArcFrom(pl *ParameterList) *SchArc {
	return &SchArc{
		OwnerPartID: pl.GetInt("OWNERPARTID", -1),
		X:           pl.GetInt("LOCATION.X", 0),
		Y:           pl.GetInt("LOCATION.Y", 0),
		Radius:      pl.GetInt("RADIUS", 0),
		StartAngle:  pl.GetFloat("STARTANGLE", 0),
		EndAngle:    pl.GetFloat("ENDANGLE", 0),
		LineWidth:   pl.GetInt("LINEWIDTH", 0),
		Color:       uint32(pl.GetInt("COLOR", 0)),
	}
}

// SchEllipticalArc is an arc with distinct radii. Radii are fixed point:
// integer part plus a fractional part scaled by 100000.
type SchEllipticalArc struct {
	OwnerPartID     int     `json:"owner_part_id"`
	X               int     `json:"x"`
	Y               int     `json:"y"`
	Radius          float64 `json:"radius"`
	SecondaryRadius float64 `json:"secondary_radius"`
	StartAngle      float64 `json:"start_angle"`
	EndAngle        float64 `json:"end_angle"`
	LineWidth       int     `json:"line_width"`
	Color           uint32  `json:"color"`
}

func (s *SchEllipticalArc) toParams(idx int) *ParameterList {
	pl := &ParameterList{}
	pl.Set("RECORD", strconv.Itoa(schRecordEllipticalArc))
	setOwner(pl, s.OwnerPartID, idx)
	pl.Set("LOCATION.X", strconv.Itoa(s.X))
	pl.Set("LOCATION.Y", strconv.Itoa(s.Y))
	setFixedPoint(pl, "RADIUS", "RADIUS_FRAC", s.Radius)
	setFixedPoint(pl, "SECONDARYRADIUS", "SECONDARYRADIUS_FRAC", s.SecondaryRadius)
	pl.Set("STARTANGLE", formatFloat(s.StartAngle))
	pl.Set("ENDANGLE", formatFloat(s.EndAngle))
	pl.Set("LINEWIDTH", strconv.Itoa(s.LineWidth))
	pl.Set("COLOR", strconv.FormatUint(uint64(s.Color), 10))
	return pl
}

func schEllipticalArcFrom(pl *ParameterList) *SchEllipticalArc {
	return &SchEllipticalArc{
		OwnerPartID:     pl.GetInt("OWNERPARTID", -1),
		X:               pl.GetInt("LOCATION.X", 0),
		Y:               pl.GetInt("LOCATION.Y", 0),
		Radius:          getFixedPoint(pl, "RADIUS", "RADIUS_FRAC"),
		SecondaryRadius: getFixedPoint(pl, "SECONDARYRADIUS", "SECONDARYRADIUS_FRAC"),
		StartAngle:      pl.GetFloat("STARTANGLE", 0),
		EndAngle:        pl.GetFloat("ENDANGLE", 0),
		LineWidth:       pl.GetInt("LINEWIDTH", 0),
		Color:           uint32(pl.GetInt("COLOR", 0)),
	}
}

// SchEllipse is a full ellipse. SecondaryRadius defaults to Radius,
// making a circle.
type SchEllipse struct {
	OwnerPartID     int    `json:"owner_part_id"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
	Radius          int    `json:"radius"`
	SecondaryRadius int    `json:"secondary_radius"`
	LineWidth       int    `json:"line_width"`
	Color           uint32 `json:"color"`
	AreaColor       uint32 `json:"area_color"`
	IsSolid         bool   `json:"is_solid"`
}

func (s *SchEllipse) toParams(idx int) *ParameterList {
	pl := &ParameterList{}
	pl.Set("RECORD", strconv.Itoa(schRecordEllipse))
	setOwner(pl, s.OwnerPartID, idx)
	pl.Set("LOCATION.X", strconv.Itoa(s.X))
	pl.Set("LOCATION.Y", strconv.Itoa(s.Y))
	pl.Set("RADIUS", strconv.Itoa(s.Radius))
	pl.Set("SECONDARYRADIUS", strconv.Itoa(s.SecondaryRadius))
	pl.Set("LINEWIDTH", strconv.Itoa(s.LineWidth))
	pl.Set("COLOR", strconv.FormatUint(uint64(s.Color), 10))
	pl.Set("AREACOLOR", strconv.FormatUint(uint64(s.AreaColor), 10))
	pl.Set("ISSOLID", formatBool(s.IsSolid))
	return pl
}

func schEllipseFrom(pl *ParameterList) *SchEllipse {
	radius := pl.GetInt("RADIUS", 0)
	return &SchEllipse{
		OwnerPartID:     pl.GetInt("OWNERPARTID", -1),
		X:               pl.GetInt("LOCATION.X", 0),
		Y:               pl.GetInt("LOCATION.Y", 0),
		Radius:          radius,
		SecondaryRadius: pl.GetInt("SECONDARYRADIUS", radius),
		LineWidth:       pl.GetInt("LINEWIDTH", 0),
		Color:           uint32(pl.GetInt("COLOR", 0)),
		AreaColor:       uint32(pl.GetInt("AREACOLOR", 0)),
		IsSolid:         pl.GetBool("ISSOLID", true),
	}
}

// SchBezier is a cubic curve with exactly four control points.
type SchBezier struct {
	OwnerPartID int        `json:"owner_part_id"`
	Points      []SchPoint `json:"points"`
	LineWidth   int        `json:"line_width"`
	Color       uint32     `json:"color"`
}

func (s *SchBezier) toParams(idx int) *ParameterList {
	pl := &ParameterList{}
	pl.Set("RECORD", strconv.Itoa(schRecordBezier))
	setOwner(pl, s.OwnerPartID, idx)
	setPoints(pl, s.Points)
	pl.Set("LINEWIDTH", strconv.Itoa(s.LineWidth))
	pl.Set("COLOR", strconv.FormatUint(uint64(s.Color), 10))
	return pl
}

func schBezierFrom(pl *ParameterList) *SchBezier {
	return &SchBezier{
		OwnerPartID: pl.GetInt("OWNERPARTID", -1),
		Points:      getPoints(pl),
		LineWidth:   pl.GetInt("LINEWIDTH", 0),
		Color:       uint32(pl.GetInt("COLOR", 0)),
	}
}

// SchLabel is a free text annotation.
type SchLabel struct {
	OwnerPartID   int    `json:"owner_part_id"`
	X             int    `json:"x"`
	Y             int    `json:"y"`
	Color         uint32 `json:"color"`
	FontID        int    `json:"font_id"`
	Text          string `json:"text"`
	Justification int    `json:"justification"`
	Hidden        bool   `json:"hidden"`
}

func (s *SchLabel) toParams(idx int) *ParameterList {
	pl := &ParameterList{}
	pl.Set("RECORD", strconv.Itoa(schRecordLabel))
	setOwner(pl, s.OwnerPartID, idx)
	pl.Set("LOCATION.X", strconv.Itoa(s.X))
	pl.Set("LOCATION.Y", strconv.Itoa(s.Y))
	pl.Set("COLOR", strconv.FormatUint(uint64(s.Color), 10))
	pl.Set("FONTID", strconv.Itoa(s.FontID))
	if s.Justification != 0 {
		pl.Set("JUSTIFICATION", strconv.Itoa(s.Justification))
	}
	if s.Hidden {
		pl.Set("ISHIDDEN", "T")
	}
	pl.Set("TEXT", s.Text)
	return pl
}

func schLabelFrom(pl *ParameterList) *SchLabel {
	return &SchLabel{
		OwnerPartID:   pl.GetInt("OWNERPARTID", -1),
		X:             pl.GetInt("LOCATION.X", 0),
		Y:             pl.GetInt("LOCATION.Y", 0),
		Color:         uint32(pl.GetInt("COLOR", 0)),
		FontID:        pl.GetInt("FONTID", 1),
		Text:          pl.GetString("TEXT", ""),
		Justification: pl.GetInt("JUSTIFICATION", 0),
		Hidden:        pl.GetBool("ISHIDDEN", false),
	}
}

// FootprintModel links a symbol to a footprint in a PCB library.
type FootprintModel struct {
	ModelName   string `json:"model_name"`
	ModelType   string `json:"model_type"`
	Description string `json:"description,omitempty"`
	IsCurrent   bool   `json:"is_current"`

	// Datafile records trailing the model record, preserved opaquely.
	datafiles []*ParameterList
}

func (m *FootprintModel) toParams() *ParameterList {
	pl := &ParameterList{}
	pl.Set("RECORD", strconv.Itoa(schRecordModel))
	pl.Set("MODELNAME", m.ModelName)
	typ := m.ModelType
	if typ == "" {
		typ = "PCBLIB"
	}
	pl.Set("MODELTYPE", typ)
	if m.Description != "" {
		pl.Set("DESCRIPTION", m.Description)
	}
	pl.Set("ISCURRENT", formatBool(m.IsCurrent))
	pl.Set("DATAFILECOUNT", strconv.Itoa(len(m.datafiles)))
	return pl
}

func footprintModelFrom(pl *ParameterList) *FootprintModel {
	return &FootprintModel{
		ModelName:   pl.GetString("MODELNAME", ""),
		ModelType:   pl.GetString("MODELTYPE", "PCBLIB"),
		Description: pl.GetString("DESCRIPTION", ""),
		IsCurrent:   pl.GetBool("ISCURRENT", false),
	}
}

// Clone returns a deep copy of the model link.
func (m *FootprintModel) Clone() *FootprintModel {
	cp := *m
	cp.datafiles = nil
	for _, d := range m.datafiles {
		cp.datafiles = append(cp.datafiles, d.Clone())
	}
	return &cp
}
