// Package surface provides the dense N-dimensional sample grids that flow
// through the registration pipeline.
//
// A [Grid] stores real samples with axis 0 varying fastest, so for a 2-D
// grid Data[y*Size[0]+x] holds the sample at (x, y). Every grid carries a
// starting index per axis ([Grid.Index]), which need not be zero, and a
// physical spacing per axis.
//
// Two grid flavours are built on top of it:
//
//   - [Image]: a grid plus the physical origin of its starting index.
//   - [Surface]: a correlation response, carrying the origins of the fixed
//     and moving images it was computed from.
//
// Indices passed to [Grid.At], [Grid.Set] and [Grid.Linear] are absolute,
// i.e. they already include the starting index.
package surface
