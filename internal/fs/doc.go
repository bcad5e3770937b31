// Package fs abstracts the file operations behind atomic blob writes so
// tests can inject I/O failures.
//
// [Local] forwards to package os. [FaultyFS] wraps another FileSystem and
// fails writes, syncs, closes or renames for files whose path contains a
// configured pattern:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".snap", fs.Fault{FailAfterBytes: 1024})
//
// The operations are short local syscalls and take no context.
package fs
