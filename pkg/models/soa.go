package models

// BoundingBox represents a user-drawn region on the document, tagged with the
// column it stands for. Coordinates are in the image's own space.
type BoundingBox struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Label  string  `json:"label"`
}

// FieldPrompts holds the optional transformation rules per known field.
// An empty string means no special rule.
type FieldPrompts struct {
	InvoiceNo string `json:"invoiceNo"`
	DueDate   string `json:"dueDate"`
	DueAmount string `json:"dueAmount"`
}

// Empty reports whether no rule was supplied at all
func (f FieldPrompts) Empty() bool {
	return f.InvoiceNo == "" && f.DueDate == "" && f.DueAmount == ""
}

// ExtractionRequest is the body of a statement-of-account extraction call
type ExtractionRequest struct {
	ImagePath    string        `json:"imagePath"`
	UserBoxes    []BoundingBox `json:"userBoxes" binding:"required"`
	FieldPrompts FieldPrompts  `json:"fieldPrompts"`
}

// Image is a document image ready to be sent to the model
type Image struct {
	Path     string
	Data     []byte
	MIMEType string
}
