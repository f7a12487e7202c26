// Package monitor holds the vocabulary host types use to mark members for
// display: the struct tag grammar, the per-member [FormatData] the engine
// derives from it, and the well-known value shapes ([Node], [Object],
// [Vector3], [Color], [Enumerable]) the formatter renders specially.
//
// A field is monitored by giving it a `monitor` struct tag:
//
//	type Player struct {
//	    Score  int     `monitor:"label=Score,order=1"`
//	    Speed  float64 `monitor:"format=%.1f,group=Movement"`
//	    Items  []Item  `monitor:"flags=index,indent=4"`
//	    Secret string  `monitor:"-"`
//	}
//
// Methods and properties carry no tags in Go, so they are annotated through
// the watchboard registration table instead; the same [Tag] type describes
// both.
package monitor
