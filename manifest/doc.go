// Package manifest records the payload of a dataset: one entry per regular
// file with its slash-separated path relative to the payload root, its size,
// modification time and content hash.
//
// The serialized form is a JSON object:
//
//	{
//	  "file_list": [
//	    {"path": "dir1/file2.txt", "size": 12, "hash": "...", "mtime": 1700000000.5}
//	  ],
//	  "hash_function": "sha1"
//	}
//
// Entries are always sorted by path so that identical payloads produce
// identical manifests apart from their mtime fields. Modification times
// record wall-clock state and are ignored by [Manifest.Equal].
package manifest
