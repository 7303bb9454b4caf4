package structural

// Style attribute keys shared by the mutator and the codecs. Codecs map
// these onto their native formatting constructs during serialization.
const (
	// AttrColor is an RRGGBB hex string on a run node.
	AttrColor = "color"
	// AttrFont is an optional font-family override on a run node,
	// used for decorative signature rendering.
	AttrFont = "font"
	// AttrRaw is a codec-private raw fragment preserved verbatim on a
	// KindProps node (e.g. serialized paragraph properties XML).
	AttrRaw = "raw"
)
