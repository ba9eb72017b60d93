package model

// Part is one leaf of a retrieved message's MIME tree.
type Part struct {
	// Filename is empty for parts that carry no filename.
	Filename    string
	ContentType string

	// Payload holds the transfer-decoded body.
	Payload []byte
}

// RetrievedMessage is an inbound mail message with its parts flattened
// in tree walk order.
type RetrievedMessage struct {
	UID       uint32
	MessageID string
	Subject   string
	From      string
	Parts     []Part
}

// Attachments returns the parts that carry a filename.
func (m RetrievedMessage) Attachments() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Filename != "" {
			out = append(out, p)
		}
	}
	return out
}
