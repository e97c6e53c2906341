package imageset

// DefaultSetName is the built-in set used when a player has too few images.
const DefaultSetName = "default"

// defaultImages are 18 square photos, enough for a 6x6 board. Entries 6
// and 15 are the same photo.
var defaultImages = []string{
	"https://images.unsplash.com/photo-1579783902614-a3fb3927b6a5?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1541963463532-d68292c34b19?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1518791841217-8f162f1e1131?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1514888286974-6c03e2ca1dba?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1472491235688-bdc81a63246e?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1573865526739-10c1dd7228d3?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1501820488136-72669149e0d4?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1535930891776-0c2dfb7fda1a?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1583337130417-3346a1be7dee?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1574158622682-e40e69881006?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1596854407944-bf87f6fdd49e?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1425082661705-1834bfd09dca?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1559827260-dc66d52bef19?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1559181567-c3190ca9959b?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1462953491269-9aff00919695?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1501820488136-72669149e0d4?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1580927752452-89d86da3fa0a?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1598133894008-61f7fdb8cc3a?w=400&h=400&fit=crop",
}

// DefaultSet returns a copy of the built-in image set.
func DefaultSet() *ImageSet {
	return &ImageSet{
		Name:        DefaultSetName,
		Description: "Built-in photo set",
		Images:      append([]string(nil), defaultImages...),
	}
}
