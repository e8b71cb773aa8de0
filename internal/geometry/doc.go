// Package geometry holds the value types shared by the detection, crop and
// overlay stages: points, axis-aligned boxes and rotated rectangles.
package geometry
