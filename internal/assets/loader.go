package assets

// AssetLoader defines the contract for loading stylesheets and surface pages.
type AssetLoader interface {
	// LoadStyle loads a CSS style by name (without .css extension).
	// Returns ErrStyleNotFound if the style doesn't exist.
	// Returns ErrInvalidAssetName if the name contains invalid characters.
	LoadStyle(name string) (string, error)

	// LoadSurface loads a surface page template by name (without .html extension).
	// Returns ErrSurfaceNotFound if the page doesn't exist.
	// Returns ErrInvalidAssetName if the name contains invalid characters.
	LoadSurface(name string) (string, error)
}

// Default asset names.
const (
	DefaultStyleName   = "github"
	DefaultSurfaceName = "mathjax"
)
