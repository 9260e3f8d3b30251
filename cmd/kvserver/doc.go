// Kvserver serves a key-value store over HTTP. POST /key stores the request
// body as the value of key and responds with the value it replaced, GET /key
// responds with the value. See package server for the details.
//
// The configuration file, by default $HOME/lib/pathkv/kvserver.config, is in
// rjson format. A missing file means defaults for everything: listen on
// 127.0.0.1:1337 and keep values in memory. Example:
//
//	{
//		address: "127.0.0.1:1337"
//		debug: true
//		read_timeout: "30s"
//		backend: {
//			type: "bolt"
//			path: "$HOME/lib/pathkv/values.db"
//		}
//	}
//
// Backend types are "memory", "bolt", "disk", "dynamodb" (which takes
// "profile", "region" and "table") and "s3" (which takes "profile", "region"
// and "bucket"). Only the memory backend loses data on
// restart. Setting "cache: true" in the backend section keeps a copy of the
// values in memory in front of any other backend.
package main // import "github.com/nicolagi/pathkv/cmd/kvserver"
