// Package server implements the HTTP front end of the key-value store. Its
// client is the client package.
//
// Valid requests are GETs and POSTs to any path other than "/". The key is
// the path with its leading slash removed, so "/foo" and "/a/b" name the keys
// "foo" and "a/b". Keys must be valid UTF-8. Requests with other HTTP verbs,
// an empty key or a key that is not valid UTF-8 return 400.
//
// If a key is not found, GETs return 404 with no body. Otherwise they return
// 200 and the value as the response body.
//
// The body of a POST is the value to be stored and must be valid UTF-8, else
// the response is 400 and nothing is stored. On success the response is 200
// and carries the value the POST replaced, or an empty body if the key was
// new. The X-Pathkv-Replaced header says which of the two happened, which
// matters when the replaced value was itself empty. Bodies larger than the
// configured maximum get 413. Errors from the store get 500 and the error
// text.
//
// The whole body of a POST is read before the store is touched, so a client
// that goes away half way leaves the store as it was. Reads do not wait for
// writes whose bodies are still arriving: a GET that overlaps a POST to the
// same key can observe either the old or the new value.
package server // import "github.com/nicolagi/pathkv/server"
