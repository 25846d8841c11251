// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"fmt"
	"strings"
)

// Layer identifies the physical or documentation surface a primitive
// lives on.
type Layer uint8

// Board layer ids.
const (
	LayerUnknown       Layer = 0
	LayerTop           Layer = 1
	LayerMid1          Layer = 2
	LayerMid30         Layer = 31
	LayerBottom        Layer = 32
	LayerTopOverlay    Layer = 33
	LayerBottomOverlay Layer = 34
	LayerTopPaste      Layer = 35
	LayerBottomPaste   Layer = 36
	LayerTopSolder     Layer = 37
	LayerBottomSolder  Layer = 38
	LayerPlane1        Layer = 39
	LayerPlane16       Layer = 54
	LayerDrillGuide    Layer = 55
	LayerKeepOut       Layer = 56
	LayerMechanical1   Layer = 57
	LayerMechanical16  Layer = 72
	LayerDrillDrawing  Layer = 73
	LayerMulti         Layer = 74
	LayerConnect       Layer = 75
	LayerBackground    Layer = 76
	LayerDRCError      Layer = 77
	LayerHighlight     Layer = 78
	LayerGridColor1    Layer = 79
	LayerGridColor10   Layer = 80
	LayerPadHoles      Layer = 81
	LayerViaHoles      Layer = 82
)

var layerNames = map[Layer]string{
	LayerTop:           "TopLayer",
	LayerBottom:        "BottomLayer",
	LayerTopOverlay:    "TopOverlay",
	LayerBottomOverlay: "BottomOverlay",
	LayerTopPaste:      "TopPaste",
	LayerBottomPaste:   "BottomPaste",
	LayerTopSolder:     "TopSolder",
	LayerBottomSolder:  "BottomSolder",
	LayerDrillGuide:    "DrillGuide",
	LayerKeepOut:       "KeepOutLayer",
	LayerDrillDrawing:  "DrillDrawing",
	LayerMulti:         "MultiLayer",
	LayerConnect:       "ConnectLayer",
	LayerBackground:    "BackgroundLayer",
	LayerDRCError:      "DRCErrorLayer",
	LayerHighlight:     "HighlightLayer",
	LayerPadHoles:      "PadHoleLayer",
	LayerViaHoles:      "ViaHoleLayer",
}

// String returns the canonical layer name.
func (l Layer) String() string {
	if s, ok := layerNames[l]; ok {
		return s
	}
	switch {
	case l >= LayerMid1 && l <= LayerMid30:
		return fmt.Sprintf("MidLayer%d", l-LayerMid1+1)
	case l >= LayerPlane1 && l <= LayerPlane16:
		return fmt.Sprintf("InternalPlane%d", l-LayerPlane1+1)
	case l >= LayerMechanical1 && l <= LayerMechanical16:
		return fmt.Sprintf("Mechanical%d", l-LayerMechanical1+1)
	case l >= LayerGridColor1 && l <= LayerGridColor10:
		return fmt.Sprintf("GridColor%d", l-LayerGridColor1+1)
	}
	return fmt.Sprintf("Layer%d", uint8(l))
}

// IsCopper reports whether the layer carries copper.
func (l Layer) IsCopper() bool {
	return (l >= LayerTop && l <= LayerBottom) ||
		(l >= LayerPlane1 && l <= LayerPlane16) || l == LayerMulti
}

// IsSignal reports whether the layer is a routing layer.
func (l Layer) IsSignal() bool {
	return l >= LayerTop && l <= LayerBottom
}

// ParseLayer resolves a layer name back to its id. Matching is
// case-insensitive; unknown names return LayerUnknown.
func ParseLayer(name string) Layer {
	t := strings.TrimSpace(name)
	for l, s := range layerNames {
		if strings.EqualFold(s, t) {
			return l
		}
	}
	var n int
	if _, err := fmt.Sscanf(t, "MidLayer%d", &n); err == nil && n >= 1 && n <= 30 {
		return LayerMid1 + Layer(n-1)
	}
	if _, err := fmt.Sscanf(t, "InternalPlane%d", &n); err == nil && n >= 1 && n <= 16 {
		return LayerPlane1 + Layer(n-1)
	}
	if _, err := fmt.Sscanf(t, "Mechanical%d", &n); err == nil && n >= 1 && n <= 16 {
		return LayerMechanical1 + Layer(n-1)
	}
	if _, err := fmt.Sscanf(t, "GridColor%d", &n); err == nil && n >= 1 && n <= 10 {
		return LayerGridColor1 + Layer(n-1)
	}
	if _, err := fmt.Sscanf(t, "Layer%d", &n); err == nil && n >= 0 && n <= 255 {
		return Layer(n)
	}
	return LayerUnknown
}
