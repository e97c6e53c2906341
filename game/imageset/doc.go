// Package imageset supplies the pictures a memory board is built from.
//
// Image sets are JSON files in a directory:
//
//	{
//	  "name": "Cats",
//	  "description": "optional",
//	  "images": ["https://...", "..."]
//	}
//
// A set needs 8 images for a 4x4 board and 18 for 6x6. A built-in default
// set is always available and is used whenever a player has not uploaded
// enough images of their own.
package imageset
