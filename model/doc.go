// Package model defines the shared data types used across the redpen
// annotation pipeline: 2D geometry (points, bounding boxes), annotation
// categories, placeholder matches, layout regions, and annotation content.
//
// The types here are plain values with no behavior beyond geometry math.
// Locators produce PlaceholderMatch and LayoutRegion values, the layout
// planner consumes LayoutRegions, and the renderer and mutators consume
// AnnotationContent.
package model
