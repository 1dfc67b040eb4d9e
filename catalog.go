package identity

// ClaimDescriptor names one recognized claim type. DisplayName is what
// administrators see on grant screens.
type ClaimDescriptor struct {
	Type        string
	DisplayName string
}

// ClaimCatalog is the externally supplied, ordered list of claim types the
// core recognizes. The core only iterates it and tests membership; it never
// invents claim types at runtime.
type ClaimCatalog struct {
	order []ClaimDescriptor
	types map[string]struct{}
}

// NewClaimCatalog builds a catalog preserving descriptor order. Duplicate
// types keep their first position.
func NewClaimCatalog(descriptors ...ClaimDescriptor) *ClaimCatalog {
	c := &ClaimCatalog{
		types: make(map[string]struct{}, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.Type == "" {
			continue
		}
		if _, seen := c.types[d.Type]; seen {
			continue
		}
		if d.DisplayName == "" {
			d.DisplayName = d.Type
		}
		c.types[d.Type] = struct{}{}
		c.order = append(c.order, d)
	}

	return c
}

// Descriptors returns the catalog in its configured order.
func (c *ClaimCatalog) Descriptors() []ClaimDescriptor {
	out := make([]ClaimDescriptor, len(c.order))
	copy(out, c.order)
	return out
}

// Recognizes reports whether claimType belongs to the catalog.
func (c *ClaimCatalog) Recognizes(claimType string) bool {
	if c == nil {
		return false
	}
	_, ok := c.types[claimType]
	return ok
}

// Len returns the number of recognized claim types.
func (c *ClaimCatalog) Len() int {
	return len(c.order)
}

// DefaultClaimCatalog returns the role administration claims most
// deployments start with.
func DefaultClaimCatalog() *ClaimCatalog {
	return NewClaimCatalog(
		ClaimDescriptor{Type: ClaimTypeDeleteRole, DisplayName: "Delete Role"},
		ClaimDescriptor{Type: ClaimTypeEditRole, DisplayName: "Edit Role"},
	)
}

const (
	ClaimTypeDeleteRole = "Delete Role"
	ClaimTypeEditRole   = "Edit Role"

	// ClaimValueGranted is the value a granted catalog claim carries.
	ClaimValueGranted = "true"
)
