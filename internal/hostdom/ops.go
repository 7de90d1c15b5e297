package hostdom

// OpKind classifies an outbound DOM operation for the browser agent
type OpKind string

const (
	OpSetRowHidden      OpKind = "setRowHidden"
	OpInsertFolderBar   OpKind = "insertFolderBar"
	OpUpdateFolderBar   OpKind = "updateFolderBar"
	OpRemoveFolderBar   OpKind = "removeFolderBar"
	OpShowPlaceholder   OpKind = "showPlaceholder"
	OpRemovePlaceholder OpKind = "removePlaceholder"
	OpNotify            OpKind = "notify"
	OpLoadStyles        OpKind = "loadStyles"
)

// Op is one DOM operation to replay on the live page. Rows are addressed
// by display name, the only identity the host page exposes.
type Op struct {
	Kind   OpKind `json:"kind"`
	Target string `json:"target,omitempty"`
	HTML   string `json:"html,omitempty"`
	Text   string `json:"text,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

func (p *Page) record(op Op) {
	p.mu.Lock()
	p.ops = append(p.ops, op)
	p.mu.Unlock()
}

// DrainOps returns and clears the accumulated outbound operations
func (p *Page) DrainOps() []Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	ops := p.ops
	p.ops = nil
	return ops
}
