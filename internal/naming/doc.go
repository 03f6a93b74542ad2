// Package naming derives output file paths. When the output argument names a
// directory, the file name comes from the first input's stem plus the
// container extension; collisions with inputs or existing files get
// " - dupN" suffixes.
package naming
