// Kvctl gets and puts values on a running kvserver.
//
//	kvctl [-addr host:port] get KEY
//	kvctl [-addr host:port] put KEY [VALUE]
//
// Put reads the value from standard input if it is not given as an argument,
// and prints the value it replaced, if any. Get prints the value, or exits
// with status 1 if the key is not set.
package main // import "github.com/nicolagi/pathkv/cmd/kvctl"
