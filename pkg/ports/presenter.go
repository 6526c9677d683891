package ports

// TargetKind identifies the flavor of render target a decoder wants its
// output bound to. The zero value is the plain 2D target.
type TargetKind uint32

const (
	KindTarget2D TargetKind = iota
	KindTargetExternal
)

// TargetHandle identifies one render target on a presentation context.
// Zero is never a valid handle.
type TargetHandle uint32

// Presenter abstracts the shared presentation context. Render targets are
// created and destroyed synchronously: the caller may use the returned
// handle immediately. Implementations serialize target creation, rendering
// and teardown across concurrent decoder instances.
type Presenter interface {
	// CreateTarget creates a render target for the given window.
	CreateTarget(windowID int, kind TargetKind, dims Dimension) (TargetHandle, error)

	// DeleteTarget releases a render target.
	DeleteTarget(h TargetHandle) error

	// Render presents the target's current contents into its window.
	Render(h TargetHandle) error
}
