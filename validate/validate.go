// Command validate checks image set JSON files and local image files before
// they are served. For image sets it checks:
//   - JSON structure and a non-empty name
//   - Every ref is an absolute http(s) URL
//   - Enough images for a 4x4 board, and whether a 6x6 board can be filled
//   - Duplicate refs (a warning: duplicates make two pairs look alike)
//
// For image files (.png, .jpg, .jpeg, .gif, .webp) it checks type, size, and
// that the picture is square.
//
// Usage: validate [path ...]   (default ../imagesets)
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/memory-tiles/game/engine"
	"github.com/wricardo/memory-tiles/game/imageset"
)

// ValidationResult captures the outcome of validating a single file.
// Messages prefixed with "✓" are informational and "⚠" are warnings; the
// rest are errors and only appear when Valid is false.
type ValidationResult struct {
	File     string
	Valid    bool
	Messages []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Messages = append(r.Messages, "✓ "+fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Messages = append(r.Messages, "⚠ "+fmt.Sprintf(format, args...))
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// validateImageSet loads and validates a single image set JSON file.
func validateImageSet(filePath string) ValidationResult {
	result := ValidationResult{
		File:     filepath.Base(filePath),
		Valid:    true,
		Messages: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var set imageset.ImageSet
	if err := json.Unmarshal(data, &set); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	if strings.TrimSpace(set.Name) == "" {
		result.fail("name is required")
	}

	for i, ref := range set.Images {
		if err := imageset.ValidateRef(ref); err != nil {
			result.fail("Image %d: %v", i, err)
		}
	}

	need4 := engine.RequiredImageCount(engine.GridSize4)
	if len(set.Images) < need4 {
		result.fail("Too few images: %d, a 4x4 board needs %d", len(set.Images), need4)
	}

	for _, dup := range imageset.Duplicates(set.Images) {
		result.warn("Duplicate image: %s", dup)
	}

	if result.Valid {
		result.info("Name: %s", set.Name)
		result.info("Images: %d", len(set.Images))
		for _, g := range engine.GridSizes {
			need := engine.RequiredImageCount(g)
			if len(set.Images) >= need {
				result.info("%dx%d board: yes (%d pairs)", g, g, need)
			} else {
				result.warn("%dx%d board: no (needs %d images)", g, g, need)
			}
		}
	}

	return result
}

// validateImageFile checks a local picture the way uploads are checked.
func validateImageFile(filePath string) ValidationResult {
	result := ValidationResult{
		File:     filepath.Base(filePath),
		Valid:    true,
		Messages: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	info, err := imageset.ValidateImage(data)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	result.info("Type: %s", info.ContentType)
	result.info("Size: %d bytes", info.Size)
	if info.Width > 0 {
		result.info("Dimensions: %dx%d", info.Width, info.Height)
	}
	return result
}

// collectFiles expands directories into the image set and image files they
// contain, in a stable order.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".json" && !imageExtensions[ext]) {
				continue
			}
			files = append(files, filepath.Join(p, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func validateFile(path string) ValidationResult {
	if imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return validateImageFile(path)
	}
	return validateImageSet(path)
}

// main validates every path given on the command line (default
// ../imagesets), printing a concise report and exiting with non-zero status
// if any file is invalid.
func main() {
	paths := os.Args[1:]
	if len(paths) == 0 {
		paths = []string{"../imagesets"}
	}

	files, err := collectFiles(paths)
	if err != nil {
		fmt.Printf("Error finding files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateFile(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, msg := range result.Messages {
				fmt.Println("  " + msg)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, msg := range result.Messages {
				if !strings.HasPrefix(msg, "✓") {
					fmt.Println("  ❌ " + msg)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Printf("✅ All %d files are valid!\n", len(files))
	} else {
		fmt.Println("❌ Some files have errors")
		os.Exit(1)
	}
}
