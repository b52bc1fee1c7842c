// Package dataset reads and scaffolds dataset directories.
//
// A dataset directory has a fixed layout:
//
//	<dataset>/
//	  .dtool/dtool            administrative metadata (JSON)
//	  .dtool/manifest.json    payload manifest (JSON)
//	  README.yml              descriptive metadata (YAML)
//	  <manifest_root>/...     payload files
//
// Administrative metadata is the dataset's identity and is never rewritten
// once created. The manifest and descriptive metadata may be regenerated.
package dataset
