package entity

// BridgeClient identifies the rendering layer process holding a bridge token.
type BridgeClient struct {
	ID     string
	Device string
}
